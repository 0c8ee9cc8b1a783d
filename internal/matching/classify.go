package matching

import (
	"github.com/joseph-ayodele/bill-audit/constants"
)

// Classifier maps a best score and the duplicate flag to a match status.
type Classifier struct {
	High float64 // at or above: Matched
	Mid  float64 // at or above: needs manual review
}

// Classify evaluates the duplicate flag first, then the thresholds.
func (c Classifier) Classify(score float64, duplicate bool) (constants.MatchStatus, string) {
	switch {
	case duplicate:
		return constants.StatusDuplicate, "Bill number repeated in ledger - verify against a single bill"
	case score >= c.High:
		return constants.StatusMatched, "Strong match - bill number and fields confirmed"
	case score >= c.Mid:
		return constants.StatusReview, "Partial match - manual verification required"
	default:
		return constants.StatusNotFound, "No matching bill image detected"
	}
}
