package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

func TestSummarize(t *testing.T) {
	d := docs("a", "b", "c")
	d[2].LowConfidence = true
	results := []entity.MatchResult{
		{Record: entity.SourceRecord{ItemTotal: "1,500.00"}, Document: d[0], Status: constants.StatusMatched},
		{Record: entity.SourceRecord{ItemTotal: "250.50"}, Document: d[0], Status: constants.StatusReview},
		{Record: entity.SourceRecord{ItemTotal: "n/a"}, Status: constants.StatusNotFound},
		{Record: entity.SourceRecord{ItemTotal: "10"}, Document: d[1], Status: constants.StatusDuplicate},
	}

	s := Summarize(results, d)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 3, s.Mismatch)
	assert.Equal(t, 1, s.Review)
	assert.Equal(t, 1, s.NotFound)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 3, s.Documents)
	assert.Equal(t, 1, s.LowConfidence)
	assert.Equal(t, 1, s.Unaccounted)
	assert.Equal(t, []string{"bills/c.jpg"}, s.UnaccountedFiles)
	assert.Equal(t, "1760.50", s.LedgerAmount)
	assert.Equal(t, "1500.00", s.MatchedAmount)
}

func TestNoLedgerResults(t *testing.T) {
	d := docs("x", "y")

	res := NoLedgerResults(d)
	s := Summarize(res, d)

	assert.Len(t, res, 2)
	for i, r := range res {
		assert.Equal(t, constants.StatusNoLedger, r.Status)
		assert.Same(t, d[i], r.Document)
	}
	assert.Equal(t, 2, s.NoLedger)
	assert.Zero(t, s.Mismatch)
	assert.Zero(t, s.Unaccounted)
}

func TestParseAmount(t *testing.T) {
	d, ok := ParseAmount("Rs. 1,500.50")
	assert.True(t, ok)
	assert.Equal(t, "1500.5", d.String())

	_, ok = ParseAmount("abc")
	assert.False(t, ok)
	_, ok = ParseAmount("")
	assert.False(t, ok)
}
