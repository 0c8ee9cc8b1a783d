package matching

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reCurrencyPrefix = regexp.MustCompile(`(?i)^(rs\.?|inr|₹)\s*`)
	reTrailingZeros  = regexp.MustCompile(`\.0+$`)
)

// amountForms returns the raw and the trailing-zero-stripped spelling of a
// ledger amount as they would appear among OCR numeric tokens.
func amountForms(raw string) (string, string) {
	s := strings.TrimSpace(raw)
	s = reCurrencyPrefix.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	return s, reTrailingZeros.ReplaceAllString(s, "")
}

// ParseAmount parses a ledger amount such as "Rs. 1,500.00".
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s, _ := amountForms(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
