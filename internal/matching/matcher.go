package matching

import (
	"strings"

	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/textnorm"
)

// Matcher pairs every ledger record with its best scoring document.
type Matcher struct {
	rules      Rules
	scorer     *Scorer
	classifier Classifier
}

func NewMatcher(rules Rules) *Matcher {
	return &Matcher{rules: rules, scorer: NewScorer(rules), classifier: rules.Classifier()}
}

// Index prepares documents once so they can be scored against many records.
func (m *Matcher) Index(docs []*entity.Document) *DocumentIndex {
	idx := &DocumentIndex{docs: docs, texts: make([]preparedText, len(docs))}
	for i, d := range docs {
		idx.texts[i] = prepareText(d.Text)
	}
	return idx
}

// DocumentIndex is an immutable, prepared document set.
type DocumentIndex struct {
	docs  []*entity.Document
	texts []preparedText
}

// Len returns the number of indexed documents.
func (x *DocumentIndex) Len() int { return len(x.docs) }

// Best scans every document and keeps the highest scorer. A later document
// only wins with a strictly greater score, so ties resolve to the first seen
// and a zero score never yields a match.
func (m *Matcher) Best(rec entity.SourceRecord, idx *DocumentIndex) entity.MatchResult {
	res := entity.MatchResult{Record: rec}
	p := prepareRecord(rec)
	for i, t := range idx.texts {
		b := m.scorer.score(p, t)
		if b.Total > res.Score {
			res.Score = b.Total
			res.Breakdown = b
			res.Document = idx.docs[i]
		}
	}
	res.Signals = m.signals(res)
	return res
}

// MatchAll flags duplicates, matches and classifies every record in ledger
// order. onRecord, when set, observes each finished result.
func (m *Matcher) MatchAll(records []entity.SourceRecord, idx *DocumentIndex, onRecord func(i int, r entity.MatchResult)) []entity.MatchResult {
	dups := DetectDuplicates(records)
	out := make([]entity.MatchResult, len(records))
	for i, rec := range records {
		r := m.Best(rec, idx)
		r.Duplicate = dups[i]
		r.Status, r.Remark = m.classifier.Classify(r.Score, r.Duplicate)
		out[i] = r
		if onRecord != nil {
			onRecord(i, r)
		}
	}
	return out
}

// DetectDuplicates flags, by position, every record whose compact bill
// number key is shared with another record. Blank keys are never flagged.
func DetectDuplicates(records []entity.SourceRecord) map[int]bool {
	byKey := make(map[string][]int)
	for i, r := range records {
		if key := textnorm.CompactKey(r.BillNumber); key != "" {
			byKey[key] = append(byKey[key], i)
		}
	}
	out := make(map[int]bool)
	for _, positions := range byKey {
		if len(positions) < 2 {
			continue
		}
		for _, p := range positions {
			out[p] = true
		}
	}
	return out
}

func (m *Matcher) signals(r entity.MatchResult) string {
	if r.Document == nil {
		return "no signal"
	}
	b := r.Breakdown
	var fired []string
	switch {
	case b.BillExact:
		fired = append(fired, "bill no")
	case b.BillNumber > 0:
		fired = append(fired, "bill no ~")
	}
	if b.VendorRatio >= m.rules.SignalRatio {
		fired = append(fired, "vendor")
	}
	if b.ItemRatio >= m.rules.SignalRatio {
		fired = append(fired, "item")
	}
	if b.AmountFound {
		fired = append(fired, "amount")
	}
	if len(fired) == 0 {
		return "no signal"
	}
	return strings.Join(fired, " + ")
}
