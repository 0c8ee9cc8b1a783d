package entity

import (
	"github.com/joseph-ayodele/bill-audit/constants"
)

// ScoreBreakdown holds the capped sub-scores and the raw evidence behind them.
type ScoreBreakdown struct {
	BillNumber  float64 `json:"bill_number"`
	Vendor      float64 `json:"vendor"`
	Item        float64 `json:"item"`
	Amount      float64 `json:"amount"`
	Total       float64 `json:"total"`
	BillExact   bool    `json:"bill_exact"`
	BillForm    string  `json:"bill_form,omitempty"`
	VendorRatio float64 `json:"vendor_ratio"`
	ItemRatio   float64 `json:"item_ratio"`
	AmountFound bool    `json:"amount_found"`
}

// MatchResult is the audit outcome for one SourceRecord.
type MatchResult struct {
	Record    SourceRecord          `json:"record"`
	Document  *Document             `json:"document,omitempty"`
	Score     float64               `json:"score"`
	Breakdown ScoreBreakdown        `json:"breakdown"`
	Status    constants.MatchStatus `json:"status"`
	Remark    string                `json:"remark"`
	Signals   string                `json:"signals"`
	Duplicate bool                  `json:"duplicate"`
}

// Summary aggregates the results of one audit run.
type Summary struct {
	Total            int      `json:"total"`
	Matched          int      `json:"matched"`
	Mismatch         int      `json:"mismatch"`
	Review           int      `json:"review"`
	NotFound         int      `json:"not_found"`
	Duplicates       int      `json:"duplicates"`
	NoLedger         int      `json:"no_ledger"`
	Documents        int      `json:"documents"`
	LowConfidence    int      `json:"low_confidence"`
	Unaccounted      int      `json:"unaccounted"`
	UnaccountedFiles []string `json:"unaccounted_files,omitempty"`
	LedgerAmount     string   `json:"ledger_amount"`
	MatchedAmount    string   `json:"matched_amount"`
}
