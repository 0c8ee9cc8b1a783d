// Package ledger loads the reference purchase register (CSV or XLSX) into
// SourceRecords.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

// ErrEmptyLedger is returned when the file has a header but no data rows.
var ErrEmptyLedger = errors.New("ledger has no data rows")

// Load reads the ledger at path, choosing the parser by extension.
func Load(path string) ([]entity.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "could not open reference file", errors.Join(common.ErrInvalidInput, err))
	}
	defer func() { _ = f.Close() }()
	return Parse(filepath.Base(path), f)
}

// Parse reads a ledger from r; name only selects the format.
func Parse(name string, r io.Reader) ([]entity.SourceRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := constants.NormalizeExt(filepath.Ext(name)); ext {
	case "csv":
		rows, err = readCSV(r)
	case "xlsx", "xlsm":
		rows, err = readXLSX(r)
	default:
		return nil, common.InputError("unsupported reference file type %q", ext)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "could not read reference file: "+err.Error(), errors.Join(common.ErrInvalidInput, err))
	}

	records, err := recordsFromRows(rows)
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, err.Error(), errors.Join(common.ErrInvalidInput, err))
	}
	return records, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// recordsFromRows maps the header row onto the recognized columns; unknown
// columns are ignored and missing ones stay empty.
func recordsFromRows(rows [][]string) ([]entity.SourceRecord, error) {
	header := -1
	for i, row := range rows {
		if !blank(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, errors.New("reference file is empty")
	}

	cols := make(map[constants.Column]int)
	for i, h := range rows[header] {
		if c, ok := constants.CanonicalColumn(h); ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no recognized columns; expected some of: %s", strings.Join(constants.ColumnNames(), ", "))
	}

	var out []entity.SourceRecord
	for _, row := range rows[header+1:] {
		if blank(row) {
			continue
		}
		get := func(c constants.Column) string {
			i, ok := cols[c]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		out = append(out, entity.SourceRecord{
			Index:      len(out),
			BillNumber: get(constants.ColBillNumber),
			BillDate:   get(constants.ColBillDate),
			VendorName: get(constants.ColVendorName),
			BranchName: get(constants.ColBranchName),
			ItemName:   get(constants.ColItemName),
			Quantity:   get(constants.ColQuantity),
			Rate:       get(constants.ColRate),
			ItemTotal:  get(constants.ColItemTotal),
		})
	}
	if len(out) == 0 {
		return nil, ErrEmptyLedger
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
