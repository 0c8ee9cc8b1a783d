package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

func sampleResults() []entity.MatchResult {
	doc := &entity.Document{ID: 0, Path: "March/b1.jpg", Folder: "March", FileName: "b1.jpg"}
	page := &entity.Document{ID: 1, Path: "scan.pdf", FileName: "scan.pdf", Page: 2}
	return []entity.MatchResult{
		{
			Record:   entity.SourceRecord{Index: 0, BillNumber: "CR/482", VendorName: "Acme", ItemTotal: "1500"},
			Document: doc, Score: 80, Status: constants.StatusMatched, Signals: "bill no + amount",
		},
		{
			Record: entity.SourceRecord{Index: 1, BillNumber: "X-9"},
			Status: constants.StatusNotFound, Remark: "No matching bill image detected", Signals: "no signal",
		},
		{
			Record:   entity.SourceRecord{Index: 2, BillNumber: "482"},
			Document: page, Score: 35, Status: constants.StatusReview,
		},
	}
}

func TestRenderAudit(t *testing.T) {
	summary := entity.Summary{Total: 3, Matched: 1, Mismatch: 2, Review: 1, NotFound: 1, Documents: 2, Unaccounted: 1, UnaccountedFiles: []string{"other.png"}}

	out, err := NewService(nil).RenderAudit(context.Background(), sampleResults(), summary)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{ReportSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ReportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "b1.jpg", rows[1][0])
	assert.Equal(t, "March", rows[1][1])
	assert.Equal(t, "80", rows[1][10])
	assert.Equal(t, "Matched", rows[1][11])
	assert.Equal(t, "", rows[2][0])
	assert.Equal(t, "Not Found", rows[2][11])
	assert.Equal(t, "No matching bill image detected", rows[2][13])
	assert.Equal(t, "scan.pdf (p2)", rows[3][0])

	w, err := f.GetColWidth(ReportSheet, "E")
	require.NoError(t, err)
	assert.Equal(t, 30.0, w)

	panes, err := f.GetPanes(ReportSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)

	assertFill(t, f, "A2", colorGreen)
	assertFill(t, f, "A3", colorRed)
	assertFill(t, f, "N4", colorYellow)

	sum, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ledger records", "3"}, sum[0])
	assert.Equal(t, "other.png", sum[len(sum)-1][0])
}

func TestRenderAudit_NoLedgerHasBlankConfidence(t *testing.T) {
	results := []entity.MatchResult{{
		Document: &entity.Document{FileName: "a.jpg"},
		Status:   constants.StatusNoLedger,
	}}

	out, err := NewService(nil).RenderAudit(context.Background(), results, entity.Summary{NoLedger: 1})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	v, err := f.GetCellValue(ReportSheet, "K2")
	require.NoError(t, err)
	assert.Empty(t, v)
	v, _ = f.GetCellValue(ReportSheet, "L2")
	assert.Equal(t, "No CSV", v)
	assertFill(t, f, "A2", colorAlt)
}

// assertFill checks the pattern color of a report cell; excelize may report
// it with an alpha prefix.
func assertFill(t *testing.T, f *excelize.File, cell, want string) {
	t.Helper()
	id, err := f.GetCellStyle(ReportSheet, cell)
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	require.NotEmpty(t, style.Fill.Color)
	assert.True(t, strings.HasSuffix(strings.ToUpper(style.Fill.Color[0]), want), "cell %s fill %s, want %s", cell, style.Fill.Color[0], want)
}
