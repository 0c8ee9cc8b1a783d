package matching

import (
	"strings"

	"github.com/joseph-ayodele/bill-audit/internal/textnorm"
)

// MinUsableChars is the aggregated text length below which a document is
// treated as an OCR failure.
const MinUsableChars = 20

// Aggregate normalizes every OCR candidate of one document and joins the
// non-empty ones with a single space. Concatenation keeps whatever each
// preprocessing pass recovered; the scorer tolerates the added noise.
func Aggregate(candidates []string) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if n := textnorm.Normalize(c); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}

// IsLowConfidence reports whether text is too short to be trusted.
func IsLowConfidence(text string, minChars int) bool {
	return len(text) < minChars
}
