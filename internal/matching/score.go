package matching

import (
	"math"

	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/textnorm"
)

// Scorer computes the 0..100 confidence that a document is the bill behind a
// ledger record.
type Scorer struct {
	rules Rules
}

func NewScorer(rules Rules) *Scorer {
	return &Scorer{rules: rules}
}

// Score compares one record against one aggregated document text.
func (s *Scorer) Score(rec entity.SourceRecord, text string) entity.ScoreBreakdown {
	return s.score(prepareRecord(rec), prepareText(text))
}

// preparedRecord caches the normalized views of a record across documents.
type preparedRecord struct {
	billForms []string
	vendor    string
	item      string
	amountRaw string
	amountCut string
}

func prepareRecord(rec entity.SourceRecord) preparedRecord {
	p := preparedRecord{
		vendor: textnorm.Normalize(rec.VendorName),
		item:   textnorm.Normalize(rec.ItemName),
	}
	p.amountRaw, p.amountCut = amountForms(rec.ItemTotal)

	bill := textnorm.Normalize(rec.BillNumber)
	if len(bill) < 2 {
		return p
	}
	seen := map[string]bool{}
	addForm := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			p.billForms = append(p.billForms, f)
		}
	}
	addForm(bill)
	addForm(textnorm.CompactKey(bill))
	if digits := textnorm.Digits(bill); len(digits) >= 3 {
		addForm(digits)
	}
	return p
}

// preparedText caches per-document views shared by every record.
type preparedText struct {
	text    string
	numbers map[string]struct{}
}

func prepareText(text string) preparedText {
	return preparedText{text: text, numbers: textnorm.NumericTokens(text)}
}

func (s *Scorer) score(rec preparedRecord, doc preparedText) entity.ScoreBreakdown {
	var b entity.ScoreBreakdown
	if doc.text == "" {
		return b
	}

	b.BillNumber, b.BillExact, b.BillForm = s.billScore(rec.billForms, doc.text)

	if len(rec.vendor) >= 3 {
		b.VendorRatio = textnorm.PartialRatio(rec.vendor, doc.text)
		b.Vendor = math.Min(b.VendorRatio*s.rules.VendorWeight, 100*s.rules.VendorWeight)
	}
	if len(rec.item) >= 2 {
		b.ItemRatio = textnorm.PartialRatio(rec.item, doc.text)
		b.Item = math.Min(b.ItemRatio*s.rules.ItemWeight, 100*s.rules.ItemWeight)
	}
	if rec.amountRaw != "" {
		_, raw := doc.numbers[rec.amountRaw]
		_, cut := doc.numbers[rec.amountCut]
		if raw || cut {
			b.AmountFound = true
			b.Amount = s.rules.AmountPoints
		}
	}

	total := b.BillNumber + b.Vendor + b.Item + b.Amount
	b.Total = math.Round(math.Max(0, math.Min(total, 100))*10) / 10
	return b
}

// billScore prefers an exact bounded occurrence of any bill form, graded by
// how specific the form is; without one it falls back to a heavily
// discounted fuzzy ratio.
func (s *Scorer) billScore(forms []string, text string) (float64, bool, string) {
	if len(forms) == 0 {
		return 0, false, ""
	}

	best, bestForm := 0.0, ""
	for _, f := range forms {
		if !textnorm.ContainsBounded(text, f) {
			continue
		}
		if award := s.exactAward(f); award > best {
			best, bestForm = award, f
		}
	}
	if bestForm != "" {
		return best, true, bestForm
	}

	for _, f := range forms {
		w := s.rules.BillFuzzyWeight
		if isShortNumeric(f) {
			w = s.rules.BillFuzzyShortWeight
		}
		if v := textnorm.PartialRatio(f, text) * w; v > best {
			best, bestForm = v, f
		}
	}
	return best, false, bestForm
}

func (s *Scorer) exactAward(form string) float64 {
	if !textnorm.IsNumeric(form) {
		return s.rules.BillExactAlnum
	}
	switch n := len(textnorm.Digits(form)); {
	case n > 6:
		return s.rules.BillExactAlnum
	case n >= 5:
		return s.rules.BillExactMedium
	default:
		return s.rules.BillExactShort
	}
}

func isShortNumeric(form string) bool {
	return textnorm.IsNumeric(form) && len(textnorm.Digits(form)) <= 4
}
