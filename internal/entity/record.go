package entity

import "strconv"

// SourceRecord is one ledger row. Index is its 0-based position in the
// ledger and is the record identity; BillNumber is a business key and may
// repeat.
type SourceRecord struct {
	Index      int    `json:"index"`
	BillNumber string `json:"bill_number"`
	BillDate   string `json:"bill_date"`
	VendorName string `json:"vendor_name"`
	BranchName string `json:"branch_name"`
	ItemName   string `json:"item_name"`
	Quantity   string `json:"quantity"`
	Rate       string `json:"rate"`
	ItemTotal  string `json:"item_total"`
}

// Document is one bill image or one rasterized PDF page.
type Document struct {
	ID            int      `json:"id"`
	Path          string   `json:"path"`
	Folder        string   `json:"folder"`
	FileName      string   `json:"file_name"`
	Page          int      `json:"page,omitempty"`
	SHA256        string   `json:"sha256,omitempty"`
	Candidates    []string `json:"-"`
	Text          string   `json:"text"`
	LowConfidence bool     `json:"low_confidence"`
}

// DisplayName is the file name, suffixed with the page for PDF pages.
func (d *Document) DisplayName() string {
	if d == nil {
		return ""
	}
	if d.Page > 0 {
		return d.FileName + " (p" + strconv.Itoa(d.Page) + ")"
	}
	return d.FileName
}
