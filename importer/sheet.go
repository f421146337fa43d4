// Package importer loads the timesheet and purchase-order exports into the raw tables.
package importer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shakinm/xlsReader/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Both exports carry their data on this sheet with the header on the third row.
const (
	DataSheet  = "Data"
	headerSkip = 2
)

// ReadSheet returns the rows of sheet in an .xlsx or .xls file after dropping the first
// skip rows. Cells hold raw values: dates in .xlsx files come back as serial numbers.
func ReadSheet(path, sheet string, skip int) ([][]string, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, sheet)
	case ".xls":
		rows, err = readXLS(path, sheet)
	default:
		return nil, utils.NewValidationError("file", fmt.Sprintf("unsupported file type %q, expected .xls or .xlsx", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) <= skip {
		return nil, nil
	}
	return rows[skip:], nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, utils.NewValidationError("file", fmt.Sprintf("cannot open %s: %v", filepath.Base(path), err))
	}
	defer f.Close()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, utils.NewValidationError("file", fmt.Sprintf("cannot read sheet %q: %v", sheet, err))
	}
	return rows, nil
}

func readXLS(path, sheet string) ([][]string, error) {
	book, err := xls.OpenFile(path)
	if err != nil {
		return nil, utils.NewValidationError("file", fmt.Sprintf("cannot open %s: %v", filepath.Base(path), err))
	}
	for i := 0; i < book.GetNumberSheets(); i++ {
		s, err := book.GetSheet(i)
		if err != nil {
			return nil, err
		}
		if s == nil || s.GetName() != sheet {
			continue
		}
		var rows [][]string
		for _, r := range s.GetRows() {
			var values []string
			for _, c := range r.GetCols() {
				values = append(values, c.GetString())
			}
			rows = append(rows, values)
		}
		return rows, nil
	}
	return nil, utils.NewValidationError("file", fmt.Sprintf("sheet %q not found", sheet))
}

// table indexes a header row so data cells can be read by column name.
type table struct {
	columns map[string]int
	rows    [][]string
}

func newTable(rows [][]string) *table {
	t := &table{columns: make(map[string]int)}
	if len(rows) == 0 {
		return t
	}
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if _, ok := t.columns[name]; !ok && name != "" {
			t.columns[name] = i
		}
	}
	t.rows = rows[1:]
	return t
}

func (t *table) missing(required []string) []string {
	var result []string
	for _, c := range required {
		if _, ok := t.columns[c]; !ok {
			result = append(result, c)
		}
	}
	return result
}

func (t *table) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[i])
	if strings.EqualFold(v, "nan") {
		return ""
	}
	return v
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
	"02-Jan-06",
}

// parseDate accepts an Excel serial number or one of the export's text layouts.
func parseDate(s string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseNumber reads a cell as a decimal, ignoring thousands separators.
func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// cleanCode turns numeric cells such as "4711.0" back into the code they were typed as.
func cleanCode(s string) string {
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}
