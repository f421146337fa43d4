package importer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestParseTimesheetRows(t *testing.T) {
	rows := [][]string{
		{"Date", "EmpCd", "EmpName", "RoleDescrptn", "CoNo", "Hours"},
		{"45667", "1001.0", " Asha ", " Project Management PRO ", " CO-100 ", "7.5"},
		{"2025-01-11", "1002", "Ravi", "Site Manager BSTL", "CO-100-A", "8"},
		{"", "1003", "x", "role", "CO-100", "1"},
		{"2025-01-11", "1004", "x", "role", "", "1"},
		{"2025-01-11", "1005", "x", "role", "CO-100", "eight"},
		{"2025-01-11", "1006", "x", "", "CO-100", "1"},
		{"", "", "", "", "", ""},
		{"nan", "1007", "x", "role", "CO-100", "1"},
	}
	entries, res, err := ParseTimesheetRows(rows)
	if err != nil {
		t.Fatalf("ParseTimesheetRows: %v", err)
	}
	if res.Read != 7 || res.Skipped != 5 || len(entries) != 2 {
		t.Fatalf("read/skipped/kept = %d/%d/%d, want 7/5/2", res.Read, res.Skipped, len(entries))
	}
	first := entries[0]
	if !first.Date.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s", first.Date)
	}
	if first.EmpCd != "1001" || first.EmpName != "Asha" || first.CoNo != "CO-100" || first.RoleDescrptn != "Project Management PRO" {
		t.Errorf("strings not cleaned: %+v", first)
	}
	if !first.Hours.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("hours = %s", first.Hours)
	}
}

func TestParseTimesheetRowsMissingColumns(t *testing.T) {
	_, _, err := ParseTimesheetRows([][]string{{"Date", "EmpCd", "CoNo"}})
	if !utils.IsValidationError(err) {
		t.Fatalf("missing columns: err = %v, want a validation error", err)
	}
	if _, err := ReadSheet("timesheet.csv", DataSheet, headerSkip); !utils.IsValidationError(err) {
		t.Fatalf("csv: err = %v, want a validation error", err)
	}
}

func TestParsePORows(t *testing.T) {
	rows := [][]string{
		{"PoNo", "Po.Date", "SrNo", "CONo", "ProjName", "MatCode", "POValue in Local Curr", "ItemCode", "Description", "SupplierName"},
		{"4500012345", "45667", "10", "CO-100", "Paint shop", "KTFT", "1,250.50", "A-1", "bolts", "ACME"},
		{"4500012345", "", "20.0", "CO-100", "Paint shop", "", "", "", "", ""},
		{"4500012346", "", "x", "CO-100", "", "RK", "5", "", "", ""},
		{"", "", "1", "CO-100", "", "RK", "5", "", "", ""},
		{"4500012347", "", "1", "", "", "RK", "5", "", "", ""},
		{"4500012348", "", "1", "CO-100", "", "RK", "n/a", "", "", ""},
	}
	lines, res, err := ParsePORows(rows)
	if err != nil {
		t.Fatalf("ParsePORows: %v", err)
	}
	if res.Read != 6 || res.Skipped != 4 || len(lines) != 2 {
		t.Fatalf("read/skipped/kept = %d/%d/%d, want 6/4/2", res.Read, res.Skipped, len(lines))
	}
	if !lines[0].PoValue.Equal(decimal.RequireFromString("1250.5")) || lines[0].PoDate == nil || lines[0].SrNo != 10 {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].MatCode != "UNKNOWN" || !lines[1].PoValue.IsZero() || lines[1].SrNo != 20 || lines[1].PoDate != nil {
		t.Errorf("second line = %+v", lines[1])
	}
}

func TestReadSheetXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timesheet.xlsx")
	f := excelize.NewFile()
	if _, err := f.NewSheet(DataSheet); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	rows := [][]interface{}{
		{"Timesheet Report"},
		{"generated 2025-01-31"},
		{"Date", "EmpCd", "EmpName", "RoleDescrptn", "CoNo", "Hours"},
		{"2025-01-10", "1001", "Asha", "Project Management PRO", "CO-100", 7.5},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(DataSheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	got, err := ReadSheet(path, DataSheet, headerSkip)
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	entries, res, err := ParseTimesheetRows(got)
	if err != nil {
		t.Fatalf("ParseTimesheetRows: %v", err)
	}
	if res.Read != 1 || len(entries) != 1 || entries[0].CoNo != "CO-100" {
		t.Fatalf("entries = %+v, result %+v", entries, res)
	}

	if _, err := ReadSheet(filepath.Join(t.TempDir(), "data.csv"), DataSheet, headerSkip); err == nil {
		t.Fatalf("csv accepted")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"45730", "2025-03-14", "14.03.2025", "14-Mar-2025", "2025-03-14 00:00:00"} {
		got, err := parseDate(in)
		if err != nil || !got.Equal(want) {
			t.Errorf("parseDate(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := parseDate("someday"); err == nil {
		t.Errorf("bad date accepted")
	}
}
