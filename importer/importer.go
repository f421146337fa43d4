package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Result counts the data rows of one import.
type Result struct {
	Read    int   `json:"read"`
	Skipped int   `json:"skipped"`
	Written int64 `json:"written"`
}

var timesheetColumns = []string{"Date", "EmpCd", "EmpName", "RoleDescrptn", "CoNo", "Hours"}

// ParseTimesheetRows cleans the rows of a timesheet export, header first. Rows missing a
// date, employee, project code or role, or with non-numeric hours, are skipped.
func ParseTimesheetRows(rows [][]string) ([]models.TimesheetEntry, Result, error) {
	t := newTable(rows)
	if missing := t.missing(timesheetColumns); len(missing) > 0 {
		return nil, Result{}, utils.NewValidationError("file", "missing required columns: "+strings.Join(missing, ", "))
	}
	var res Result
	entries := make([]models.TimesheetEntry, 0, len(t.rows))
	for _, row := range t.rows {
		if isBlank(row) {
			continue
		}
		res.Read++
		dateCell := t.get(row, "Date")
		empCd := cleanCode(t.get(row, "EmpCd"))
		coNo := t.get(row, "CoNo")
		role := t.get(row, "RoleDescrptn")
		hoursCell := t.get(row, "Hours")
		if dateCell == "" || empCd == "" || coNo == "" || role == "" || hoursCell == "" {
			res.Skipped++
			continue
		}
		date, err := parseDate(dateCell)
		if err != nil {
			res.Skipped++
			continue
		}
		hours, err := parseNumber(hoursCell)
		if err != nil {
			res.Skipped++
			continue
		}
		entries = append(entries, models.TimesheetEntry{
			Date:         date,
			EmpCd:        empCd,
			EmpName:      t.get(row, "EmpName"),
			RoleDescrptn: role,
			CoNo:         coNo,
			Hours:        hours.Round(4),
		})
	}
	return entries, res, nil
}

var poColumns = []string{"PoNo", "Po.Date", "SrNo", "CONo", "ProjName", "MatCode", "POValue in Local Curr"}

// ParsePORows cleans the rows of a purchase-order export, header first. Rows missing the
// project code, PO number or a whole-number line number are skipped; a blank value is 0.
func ParsePORows(rows [][]string) ([]models.POData, Result, error) {
	t := newTable(rows)
	if missing := t.missing(poColumns); len(missing) > 0 {
		return nil, Result{}, utils.NewValidationError("file", "missing required columns: "+strings.Join(missing, ", "))
	}
	var res Result
	lines := make([]models.POData, 0, len(t.rows))
	for _, row := range t.rows {
		if isBlank(row) {
			continue
		}
		res.Read++
		coNo := t.get(row, "CONo")
		poNo := cleanCode(t.get(row, "PoNo"))
		srNo, err := strconv.Atoi(cleanCode(t.get(row, "SrNo")))
		if coNo == "" || poNo == "" || err != nil {
			res.Skipped++
			continue
		}
		value := decimal.Zero
		if cell := t.get(row, "POValue in Local Curr"); cell != "" {
			if value, err = parseNumber(cell); err != nil {
				res.Skipped++
				continue
			}
		}
		line := models.POData{
			CoNo:         coNo,
			PoNo:         poNo,
			SrNo:         srNo,
			ProjectName:  t.get(row, "ProjName"),
			MatCode:      t.get(row, "MatCode"),
			PoValue:      value.Round(4),
			ItemCode:     cleanCode(t.get(row, "ItemCode")),
			Description:  t.get(row, "Description"),
			SupplierName: t.get(row, "SupplierName"),
		}
		if line.MatCode == "" {
			line.MatCode = "UNKNOWN"
		}
		if cell := t.get(row, "Po.Date"); cell != "" {
			if d, err := parseDate(cell); err == nil {
				line.PoDate = &d
			}
		}
		lines = append(lines, line)
	}
	return lines, res, nil
}

// ImportTimesheet reads the Data sheet of path and inserts its rows, ignoring rows whose
// natural key already exists. With dryRun nothing is written.
func ImportTimesheet(ctx context.Context, path string, dryRun bool) (*Result, error) {
	rows, err := ReadSheet(path, DataSheet, headerSkip)
	if err != nil {
		return nil, err
	}
	entries, res, err := ParseTimesheetRows(rows)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		if res.Written, err = models.InsertTimesheetEntries(ctx, entries); err != nil {
			return nil, err
		}
	}
	logResult("timesheet", path, dryRun, &res)
	return &res, nil
}

// ImportPOData reads the Data sheet of path and upserts its lines on (co_no, po_no, sr_no).
func ImportPOData(ctx context.Context, path string, dryRun bool) (*Result, error) {
	rows, err := ReadSheet(path, DataSheet, headerSkip)
	if err != nil {
		return nil, err
	}
	lines, res, err := ParsePORows(rows)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		if res.Written, err = models.UpsertPOData(ctx, lines); err != nil {
			return nil, err
		}
	}
	logResult("po_data", path, dryRun, &res)
	return &res, nil
}

func logResult(kind, path string, dryRun bool, res *Result) {
	config.GetLogger().WithFields(logrus.Fields{
		"module":  "Importer",
		"kind":    kind,
		"file":    path,
		"dry_run": dryRun,
		"read":    res.Read,
		"skipped": res.Skipped,
		"written": res.Written,
	}).Info("import finished")
}
