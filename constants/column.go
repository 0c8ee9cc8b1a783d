package constants

import (
	"strings"
)

// Column is a recognized ledger column.
type Column string

const (
	ColBillNumber Column = "Bill Number"
	ColBillDate   Column = "Bill Date"
	ColVendorName Column = "Vendor Name"
	ColBranchName Column = "Branch Name"
	ColItemName   Column = "Item Name"
	ColQuantity   Column = "Quantity"
	ColRate       Column = "Rate"
	ColItemTotal  Column = "Item Total"
)

var allColumns = []Column{
	ColBillNumber,
	ColBillDate,
	ColVendorName,
	ColBranchName,
	ColItemName,
	ColQuantity,
	ColRate,
	ColItemTotal,
}

// ColumnNames returns the canonical header names in ledger order.
func ColumnNames() []string {
	result := make([]string, len(allColumns))
	for i, c := range allColumns {
		result[i] = string(c)
	}
	return result
}

// CanonicalColumn maps a raw header cell to a recognized column.
func CanonicalColumn(header string) (Column, bool) {
	if header == "" {
		return "", false
	}

	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(header))), " ")

	// synonyms seen in exported purchase registers
	synonyms := map[string]Column{
		"bill no":           ColBillNumber,
		"bill no.":          ColBillNumber,
		"bill #":            ColBillNumber,
		"invoice number":    ColBillNumber,
		"invoice no":        ColBillNumber,
		"invoice date":      ColBillDate,
		"date":              ColBillDate,
		"vendor":            ColVendorName,
		"supplier":          ColVendorName,
		"supplier name":     ColVendorName,
		"branch":            ColBranchName,
		"customer":          ColBranchName,
		"customer / hotel":  ColBranchName,
		"hotel":             ColBranchName,
		"item":              ColItemName,
		"item description":  ColItemName,
		"description":       ColItemName,
		"qty":               ColQuantity,
		"rate (rs)":         ColRate,
		"unit price":        ColRate,
		"total":             ColItemTotal,
		"amount":            ColItemTotal,
		"total amount":      ColItemTotal,
		"total amount (rs)": ColItemTotal,
	}

	if c, ok := synonyms[normalized]; ok {
		return c, true
	}

	for _, c := range allColumns {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}

	return "", false
}
