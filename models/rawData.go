package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimesheetEntry is one imported labor row. Rows are never edited after import.
type TimesheetEntry struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Date         time.Time       `gorm:"type:date;uniqueIndex:idx_timesheet_natural_key,priority:1;index:idx_timesheet_date_co_no,priority:1;not null" json:"date"`
	EmpCd        string          `gorm:"size:20;uniqueIndex:idx_timesheet_natural_key,priority:2;not null" json:"emp_cd"`
	EmpName      string          `gorm:"size:100" json:"emp_name"`
	RoleDescrptn string          `gorm:"size:255;uniqueIndex:idx_timesheet_natural_key,priority:4;not null" json:"role_descrptn"`
	CoNo         string          `gorm:"size:20;uniqueIndex:idx_timesheet_natural_key,priority:3;index:idx_timesheet_date_co_no,priority:2;index;not null" json:"co_no"`
	Hours        decimal.Decimal `gorm:"type:decimal(12,4);default:0" json:"hours"`
	ImportedAt   time.Time       `gorm:"autoCreateTime" json:"imported_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// POData is one imported purchase-order line.
type POData struct {
	ID           int             `gorm:"primary_key" json:"id"`
	CoNo         string          `gorm:"size:20;uniqueIndex:idx_po_natural_key,priority:1;index;not null" json:"co_no"`
	PoNo         string          `gorm:"size:50;uniqueIndex:idx_po_natural_key,priority:2;not null" json:"po_no"`
	SrNo         int             `gorm:"uniqueIndex:idx_po_natural_key,priority:3;not null" json:"sr_no"`
	PoDate       *time.Time      `gorm:"type:date" json:"po_date"`
	ProjectName  string          `gorm:"size:255" json:"project_name"`
	MatCode      string          `gorm:"size:100;index" json:"mat_code"`
	PoValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"po_value"`
	ItemCode     string          `gorm:"size:100" json:"item_code"`
	Description  string          `gorm:"type:text" json:"description"`
	SupplierName string          `gorm:"size:255" json:"supplier_name"`
	ImportedAt   time.Time       `gorm:"autoCreateTime" json:"imported_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (POData) TableName() string {
	return "po_data"
}

const importBatchSize = 1000

// InsertTimesheetEntries inserts rows, skipping those whose natural key already exists.
// Returns the number of rows written.
func InsertTimesheetEntries(ctx context.Context, rows []TimesheetEntry) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var written int64
	err := withImportLock(ctx, "timesheet_entries", func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Insert{Modifier: "IGNORE"}).CreateInBatches(&rows, importBatchSize)
		written = res.RowsAffected
		return res.Error
	})
	return written, err
}

// UpsertPOData inserts rows and refreshes value and descriptive fields of existing lines.
// MySQL counts an updated row twice in the affected total.
func UpsertPOData(ctx context.Context, rows []POData) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var affected int64
	err := withImportLock(ctx, "po_data", func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "co_no"}, {Name: "po_no"}, {Name: "sr_no"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"po_date", "project_name", "mat_code", "po_value", "item_code", "description", "supplier_name", "updated_at",
			}),
		}).CreateInBatches(&rows, importBatchSize)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func projectCodeLike(coNo string) string {
	return utils.EscapeLike(coNo) + "%"
}

// loadTimesheetRows returns the rows of coNo (prefix match) dated on or before asOf.
func loadTimesheetRows(tx *gorm.DB, coNo string, asOf time.Time) ([]psr.TimesheetRow, error) {
	var entries []TimesheetEntry
	if err := tx.Where("co_no LIKE ? AND date <= ?", projectCodeLike(coNo), asOf).
		Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	rows := make([]psr.TimesheetRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, psr.TimesheetRow{
			Date:            e.Date,
			ProjectCode:     e.CoNo,
			RoleDescription: e.RoleDescrptn,
			Hours:           e.Hours,
		})
	}
	return rows, nil
}

func loadPurchaseOrderRows(tx *gorm.DB, coNo string) ([]psr.PurchaseOrderRow, error) {
	var lines []POData
	if err := tx.Where("co_no LIKE ?", projectCodeLike(coNo)).Order("id").Find(&lines).Error; err != nil {
		return nil, err
	}
	rows := make([]psr.PurchaseOrderRow, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, psr.PurchaseOrderRow{
			ProjectCode: l.CoNo,
			MatCode:     l.MatCode,
			Value:       l.PoValue,
		})
	}
	return rows, nil
}
