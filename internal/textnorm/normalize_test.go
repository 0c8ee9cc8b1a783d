package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "only noise", in: "  ---///  ", want: ""},
		{name: "case and punctuation", in: "ACME Traders, Pvt. Ltd!", want: "acme traders pvt. ltd"},
		{name: "whitespace runs", in: "bill\t\tno:\n 482 ", want: "bill no 482"},
		{name: "amount with separators", in: "Rs. 1,500.00", want: "rs. 1 500.00"},
		{name: "non ascii letters dropped", in: "Café №7", want: "caf 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"", " ", "CR/482", "Total:\tRs 1,500.00\n", "İstanbul Çay Evi", "a..b  c", " x y",
		"INV-0009 / 2024", "___", "..", "ÀÉÎÕÜ 123",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestCompactKey(t *testing.T) {
	for _, in := range []string{"CR/482", "cr 482", "cr-482", " Cr.482 "} {
		assert.Equal(t, "cr482", CompactKey(in), "input %q", in)
	}
	assert.Equal(t, "", CompactKey("//"))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "482", Digits("CR/482"))
	assert.Equal(t, "", Digits("abc"))
}

func TestNumericTokens(t *testing.T) {
	got := NumericTokens("cr482 acme total 1500 tax 12.50 qty 2 1500")
	assert.Equal(t, map[string]struct{}{"1500": {}, "12.50": {}, "2": {}}, got)
	assert.Empty(t, NumericTokens(""))
}

func TestContainsBounded(t *testing.T) {
	tests := []struct {
		text, token string
		want        bool
	}{
		{"cr482 acme", "cr482", true},
		{"xcr482 acme", "cr482", false},
		{"bill 482", "482", true},
		{"bill 4821", "482", false},
		{"total 1500.00", "1500", true},
		{"no 14821 then 482.", "482", true},
		{"", "482", false},
		{"482", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsBounded(tt.text, tt.token), "%q in %q", tt.token, tt.text)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("482"))
	assert.True(t, IsNumeric("12 34"))
	assert.True(t, IsNumeric("4.82"))
	assert.False(t, IsNumeric("cr482"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("  "))
}
