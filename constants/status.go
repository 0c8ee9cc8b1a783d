package constants

// JobStatus is the lifecycle state of an audit job.
type JobStatus string

// Stable values (persisted in audit_runs.status and returned by the API).
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further transition can leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// MatchStatus is the per-record audit outcome written to the report.
type MatchStatus string

const (
	StatusMatched   MatchStatus = "Matched"
	StatusReview    MatchStatus = "Mismatch / Duplicate" // found something, not confident
	StatusNotFound  MatchStatus = "Not Found"
	StatusDuplicate MatchStatus = "Duplicate"
	StatusNoLedger  MatchStatus = "No CSV"
)

// Rank orders statuses for a fixed duplicate flag: NotFound < Review < Matched.
func (s MatchStatus) Rank() int {
	switch s {
	case StatusMatched:
		return 2
	case StatusReview:
		return 1
	default:
		return 0
	}
}

// IsIssue reports whether s counts towards the "issues" total of a summary.
func (s MatchStatus) IsIssue() bool {
	return s == StatusNotFound || s == StatusReview || s == StatusDuplicate
}

// Severity tags a job log line.
type Severity string

const (
	SeverityOK   Severity = "ok"
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityErr  Severity = "err"
)
