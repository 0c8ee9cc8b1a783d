package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/matching"
)

// match classifies every record against the full document set, or lists
// the documents on their own when there is no ledger.
func (p *Processor) match(job *jobs.Job, records []entity.SourceRecord, docs []*entity.Document) []entity.MatchResult {
	if records == nil {
		out := matching.NoLedgerResults(docs)
		for range out {
			p.metrics.Record(string(constants.StatusNoLedger))
		}
		job.Advance(ProgressMatched, "Listing bills")
		return out
	}

	job.Log(constants.SeverityInfo, "Matching reference rows to bill images...")
	idx := p.matcher.Index(docs)
	n := len(records)
	return p.matcher.MatchAll(records, idx, func(i int, r entity.MatchResult) {
		p.metrics.Record(string(r.Status))
		job.Log(severityFor(r.Status), MatchLine(r))
		job.Advance(ProgressOCRDone+(ProgressMatched-ProgressOCRDone)*(i+1)/n, fmt.Sprintf("Matching %d/%d", i+1, n))
	})
}

// MatchLine is the per-record log line.
func MatchLine(r entity.MatchResult) string {
	bill := r.Record.BillNumber
	if bill == "" {
		bill = "?"
	}
	vendor := []rune(r.Record.VendorName)
	if len(vendor) > 20 {
		vendor = vendor[:20]
	}
	v := string(vendor)
	if v == "" {
		v = "?"
	}
	return fmt.Sprintf("%s | %s | %s | score %s", r.Status, bill, v, formatScore(r.Score))
}

func formatScore(s float64) string {
	if s == float64(int64(s)) {
		return fmt.Sprintf("%d", int64(s))
	}
	return fmt.Sprintf("%.1f", s)
}

func severityFor(s constants.MatchStatus) constants.Severity {
	switch s {
	case constants.StatusMatched:
		return constants.SeverityOK
	case constants.StatusNotFound:
		return constants.SeverityErr
	default:
		return constants.SeverityInfo
	}
}
