package matching

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

// Summarize counts statuses, reconciles the document set against the chosen
// best matches and totals the ledger amounts.
func Summarize(results []entity.MatchResult, docs []*entity.Document) entity.Summary {
	s := entity.Summary{Total: len(results), Documents: len(docs)}

	used := make(map[int]bool)
	ledger, matched := decimal.Zero, decimal.Zero
	for _, r := range results {
		switch r.Status {
		case constants.StatusMatched:
			s.Matched++
		case constants.StatusReview:
			s.Review++
		case constants.StatusNotFound:
			s.NotFound++
		case constants.StatusDuplicate:
			s.Duplicates++
		case constants.StatusNoLedger:
			s.NoLedger++
		}
		if r.Status.IsIssue() {
			s.Mismatch++
		}
		if r.Status == constants.StatusNoLedger {
			continue
		}
		if r.Document != nil {
			used[r.Document.ID] = true
		}
		if amt, ok := ParseAmount(r.Record.ItemTotal); ok {
			ledger = ledger.Add(amt)
			if r.Status == constants.StatusMatched {
				matched = matched.Add(amt)
			}
		}
	}

	for _, d := range docs {
		if d.LowConfidence {
			s.LowConfidence++
		}
		if s.NoLedger == 0 && !used[d.ID] {
			s.Unaccounted++
			s.UnaccountedFiles = append(s.UnaccountedFiles, d.Path)
		}
	}
	s.LedgerAmount = ledger.StringFixed(2)
	s.MatchedAmount = matched.StringFixed(2)
	return s
}

// NoLedgerResults lists every document as its own informational row when no
// reference file was supplied. No matching is performed.
func NoLedgerResults(docs []*entity.Document) []entity.MatchResult {
	out := make([]entity.MatchResult, 0, len(docs))
	for i, d := range docs {
		out = append(out, entity.MatchResult{
			Record:   entity.SourceRecord{Index: i},
			Document: d,
			Status:   constants.StatusNoLedger,
			Remark:   "No reference file supplied",
			Signals:  "no signal",
		})
	}
	return out
}
