// Package export renders audit results into the downloadable XLSX report.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

const (
	ReportSheet  = "Audit Report"
	SummarySheet = "Summary"
)

var headers = []string{
	"File Name", "Folder", "Bill Number", "Bill Date",
	"Vendor Name", "Customer / Hotel", "Item Description",
	"Quantity", "Rate (Rs)", "Total Amount (Rs)",
	"AI Confidence", "Match Status", "Signals", "Remark",
}

var colWidths = []float64{22, 18, 15, 12, 30, 25, 25, 10, 12, 15, 12, 14, 24, 40}

const (
	colorHeader = "1E3A5F"
	colorGreen  = "C6EFCE"
	colorRed    = "FFC7CE"
	colorYellow = "FFEB9C"
	colorAlt    = "EEF4FF"
)

// Service produces XLSX bytes for audit reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

type styles struct {
	header, green, red, yellow, alt, plain, label int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	fill := func(color string) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Vertical: "center"},
		})
		return id
	}
	st.green = fill(colorGreen)
	st.red = fill(colorRed)
	st.yellow = fill(colorYellow)
	st.alt = fill(colorAlt)
	if err != nil {
		return st, err
	}
	if st.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{colorHeader}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	}); err != nil {
		return st, err
	}
	if st.plain, err = f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Vertical: "center"}}); err != nil {
		return st, err
	}
	st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	return st, err
}

// rowStyle picks the fill of a data row; row is the 1-based sheet row.
func (st styles) rowStyle(status constants.MatchStatus, row int) int {
	switch status {
	case constants.StatusMatched:
		return st.green
	case constants.StatusNotFound:
		return st.red
	case constants.StatusReview, constants.StatusDuplicate:
		return st.yellow
	}
	if row%2 == 0 {
		return st.alt
	}
	return st.plain
}

// RenderAudit returns a workbook with one row per result in the given order
// and a summary sheet.
func (s *Service) RenderAudit(ctx context.Context, results []entity.MatchResult, summary entity.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), ReportSheet); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("xlsx styles: %w", err)
	}

	hdr := make([]any, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(ReportSheet, "A1", &hdr); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(ReportSheet, "A1", lastCol+"1", st.header)
	_ = f.SetRowHeight(ReportSheet, 1, 30)

	for i, r := range results {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		vals := rowValues(r)
		if err := f.SetSheetRow(ReportSheet, cell, &vals); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		end, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(ReportSheet, cell, end, st.rowStyle(r.Status, row))
	}

	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(ReportSheet, col, col, w)
	}
	if err := f.SetPanes(ReportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	if err := writeSummary(f, summary, st); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func rowValues(r entity.MatchResult) []any {
	var file, folder string
	if r.Document != nil {
		file, folder = r.Document.DisplayName(), r.Document.Folder
	}
	var confidence any = r.Score
	if r.Status == constants.StatusNoLedger {
		confidence = ""
	}
	rec := r.Record
	return []any{
		file, folder, rec.BillNumber, rec.BillDate,
		rec.VendorName, rec.BranchName, rec.ItemName,
		rec.Quantity, rec.Rate, rec.ItemTotal,
		confidence, string(r.Status), r.Signals, r.Remark,
	}
}

func writeSummary(f *excelize.File, sum entity.Summary, st styles) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	rows := [][]any{
		{"Ledger records", sum.Total},
		{"Matched", sum.Matched},
		{"Issues", sum.Mismatch},
		{"Needs review", sum.Review},
		{"Not found", sum.NotFound},
		{"Duplicate bill numbers", sum.Duplicates},
		{"Bills without ledger", sum.NoLedger},
		{"Bill documents", sum.Documents},
		{"Low OCR confidence", sum.LowConfidence},
		{"Unaccounted bills", sum.Unaccounted},
		{"Ledger amount (Rs)", sum.LedgerAmount},
		{"Matched amount (Rs)", sum.MatchedAmount},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), st.label)

	if len(sum.UnaccountedFiles) > 0 {
		at := len(rows) + 2
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", at), "Unaccounted files")
		_ = f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", at), fmt.Sprintf("A%d", at), st.label)
		for i, name := range sum.UnaccountedFiles {
			_ = f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", at+1+i), name)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 28)
	_ = f.SetColWidth(SummarySheet, "B", "B", 16)
	return nil
}
