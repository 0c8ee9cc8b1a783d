// Package jobs holds the in-memory state of audit runs: the per-job state
// machine, the registry polled by callers and the worker queue running them.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

// LogEntry is one line of a job's log stream.
type LogEntry struct {
	Time     time.Time          `json:"time"`
	Severity constants.Severity `json:"severity"`
	Message  string             `json:"message"`
}

// Status is a point-in-time copy of a job.
type Status struct {
	ID         uuid.UUID           `json:"job_id"`
	Status     constants.JobStatus `json:"status"`
	Progress   int                 `json:"progress"`
	Step       string              `json:"step"`
	Logs       []LogEntry          `json:"logs"`
	Summary    *entity.Summary     `json:"summary,omitempty"`
	Error      string              `json:"error,omitempty"`
	ReportKey  string              `json:"-"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Job is one audit run. The worker running it is the only writer; pollers
// read it through Snapshot. All fields are guarded by mu.
type Job struct {
	ID uuid.UUID

	mu         sync.Mutex
	status     constants.JobStatus
	progress   int
	step       string
	history    []LogEntry
	pending    []LogEntry
	summary    *entity.Summary
	errMsg     string
	reportKey  string
	createdAt  time.Time
	finishedAt time.Time
	now        func() time.Time
}

func newJob(id uuid.UUID, now func() time.Time) *Job {
	return &Job{
		ID:        id,
		status:    constants.JobStatusProcessing,
		createdAt: now(),
		now:       now,
	}
}

// Advance raises progress to p (clamped to [current, 100]) and sets the step
// label when non-empty. It is a no-op once the job is terminal.
func (j *Job) Advance(p int, step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	if p > 100 {
		p = 100
	}
	if p > j.progress {
		j.progress = p
	}
	if step != "" {
		j.step = step
	}
}

// Log appends a line to the history and the undelivered buffer. Lines
// logged after the job became terminal are dropped.
func (j *Job) Log(sev constants.Severity, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	e := LogEntry{Time: j.now(), Severity: sev, Message: msg}
	j.history = append(j.history, e)
	j.pending = append(j.pending, e)
}

// StepComplete is the step of every done job.
const StepComplete = "Complete"

// Complete moves the job to done at 100% with its final summary. It reports
// false when the job was already terminal.
func (j *Job) Complete(summary entity.Summary, reportKey string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = constants.JobStatusDone
	j.progress = 100
	j.step = StepComplete
	j.summary = &summary
	j.reportKey = reportKey
	j.finishedAt = j.now()
	return true
}

// Fail moves the job to error carrying err's message. It reports false when
// the job was already terminal.
func (j *Job) Fail(err error) bool {
	if err == nil {
		err = errors.New("unknown error")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = constants.JobStatusError
	j.errMsg = err.Error()
	j.step = "Failed"
	j.finishedAt = j.now()
	return true
}

// Snapshot copies the job. With drain set, the returned Logs are the lines
// not yet delivered and the buffer is cleared in the same critical section,
// so each line reaches exactly one draining caller. Without drain, Logs is
// the full history.
func (j *Job) Snapshot(drain bool) Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Status{
		ID:        j.ID,
		Status:    j.status,
		Progress:  j.progress,
		Step:      j.step,
		Error:     j.errMsg,
		ReportKey: j.reportKey,
		CreatedAt: j.createdAt,
	}
	if j.summary != nil {
		sum := *j.summary
		s.Summary = &sum
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	if drain {
		s.Logs = j.pending
		j.pending = nil
	} else {
		s.Logs = append([]LogEntry(nil), j.history...)
	}
	if s.Logs == nil {
		s.Logs = []LogEntry{}
	}
	return s
}

// Terminal reports whether the job reached done or error.
func (j *Job) Terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.Terminal()
}

func (j *Job) finishedBefore(cutoff time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.Terminal() && j.finishedAt.Before(cutoff)
}
