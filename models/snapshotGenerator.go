package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("psr_backend/models")

var (
	repeatableRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	readCommitted  = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
)

type SnapshotResult struct {
	Snapshot      *PSRSnapshot    `json:"snapshot"`
	Diagnostics   psr.Diagnostics `json:"diagnostics"`
	FirstSnapshot bool            `json:"first_snapshot"`
}

// GenerateSnapshot computes and stores the snapshot of projectId as of date in its own
// repeatable-read transaction. Re-running it with unchanged data stores identical values.
func GenerateSnapshot(ctx context.Context, projectId int, date time.Time, frequency SnapshotFrequency, actor string) (*SnapshotResult, error) {
	var result *SnapshotResult
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = GenerateSnapshotTx(ctx, tx, projectId, date, frequency, actor)
		return err
	}, repeatableRead)
	if err != nil {
		return nil, err
	}
	invalidateReportCache()
	return result, nil
}

// GenerateSnapshotByCoNo resolves the project code and generates its snapshot.
func GenerateSnapshotByCoNo(ctx context.Context, coNo string, date time.Time, frequency SnapshotFrequency, actor string) (*SnapshotResult, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	return GenerateSnapshot(ctx, project.ID, date, frequency, actor)
}

// GenerateSnapshotTx runs generation inside the caller's transaction. The project row is
// locked first, so every read after it sees all committed changes and generation of one
// project is serialized.
func GenerateSnapshotTx(ctx context.Context, tx *gorm.DB, projectId int, date time.Time, frequency SnapshotFrequency, actor string) (*SnapshotResult, error) {
	ctx, span := tracer.Start(ctx, "GenerateSnapshot",
		trace.WithAttributes(attribute.Int("psr.project_id", projectId)))
	defer span.End()
	tx = tx.WithContext(ctx)

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, utils.NewValidationError("generated_by", "actor is required")
	}
	if frequency == "" {
		frequency = SnapshotFrequencyMonthly
	}
	if _, err := ParseSnapshotFrequency(string(frequency)); err != nil {
		return nil, utils.NewValidationError("frequency", err.Error())
	}
	date = psr.DateOnly(date)

	var project Project
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, projectId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("psr.project", project.CoNo),
		attribute.String("psr.snapshot_date", date.Format("2006-01-02")),
		attribute.String("psr.frequency", string(frequency)),
	)

	input, err := loadSnapshotInput(tx, &project, date)
	if err != nil {
		return nil, fmt.Errorf("load snapshot input of %s: %w", project.CoNo, err)
	}
	res := psr.Assemble(*input)

	snapshot := PSRSnapshot{
		ProjectId:    project.ID,
		SnapshotDate: date,
		Frequency:    frequency,
		Data:         res.Document,
		GeneratedAt:  time.Now().UTC(),
		GeneratedBy:  actor,
	}
	snapshot.setTotals(res.Totals)
	if err := upsertSnapshot(tx, &snapshot); err != nil {
		return nil, fmt.Errorf("store snapshot of %s: %w", project.CoNo, err)
	}

	config.GetLogger().WithFields(logrus.Fields{
		"module":                   "PSRSnapshot",
		"project":                  project.CoNo,
		"snapshot_date":            date.Format("2006-01-02"),
		"frequency":                frequency,
		"first_snapshot":           res.FirstSnapshot,
		"timesheet_rows":           res.Diagnostics.Timesheets.Rows,
		"timesheet_unmatched":      res.Diagnostics.Timesheets.Unmatched,
		"purchase_order_rows":      res.Diagnostics.PurchaseOrders.Rows,
		"purchase_order_unmatched": res.Diagnostics.PurchaseOrders.Unmatched,
	}).Info("psr snapshot generated")

	return &SnapshotResult{
		Snapshot:      &snapshot,
		Diagnostics:   res.Diagnostics,
		FirstSnapshot: res.FirstSnapshot,
	}, nil
}

// loadSnapshotInput reads everything the assembler needs from tx.
func loadSnapshotInput(tx *gorm.DB, project *Project, date time.Time) (*psr.Input, error) {
	var departments []Department
	if err := tx.Preload("SubDepartments").Where("project_id = ?", project.ID).Find(&departments).Error; err != nil {
		return nil, err
	}
	deptNodes := make([]psr.DepartmentNode, 0, len(departments))
	for _, dept := range departments {
		node := psr.DepartmentNode{ID: dept.ID, Name: string(dept.Name), HourlyRate: dept.HourlyRate}
		for i := range dept.SubDepartments {
			node.SubDepartments = append(node.SubDepartments, dept.SubDepartments[i].node())
		}
		deptNodes = append(deptNodes, node)
	}

	var categories []CostCategory
	if err := tx.Order("code").Find(&categories).Error; err != nil {
		return nil, err
	}
	catalog := make([]psr.CostCategoryRef, 0, len(categories))
	for _, c := range categories {
		catalog = append(catalog, psr.CostCategoryRef{Code: c.Code, MatCode: c.MatCode})
	}

	var pccs []ProjectCostCategory
	if err := tx.Preload("CostCategory").Where("project_id = ?", project.ID).Find(&pccs).Error; err != nil {
		return nil, err
	}
	catNodes := make([]psr.CategoryNode, 0, len(pccs))
	for i := range pccs {
		manual := decimal.Zero
		if pccs[i].IsRK() && pccs[i].ActualOverride {
			sum, err := rkManualActual(tx, pccs[i].ID)
			if err != nil {
				return nil, err
			}
			manual = sum
		}
		catNodes = append(catNodes, pccs[i].node(manual))
	}

	timesheets, err := loadTimesheetRows(tx, project.CoNo, date)
	if err != nil {
		return nil, err
	}
	purchaseOrders, err := loadPurchaseOrderRows(tx, project.CoNo)
	if err != nil {
		return nil, err
	}

	var previous *psr.Document
	prev, err := findPreviousMonthSnapshot(tx, project.ID, date)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if prev != nil {
		previous = &prev.Data
	}

	return &psr.Input{
		ProjectCode:    project.CoNo,
		SnapshotDate:   date,
		ExchangeRate:   project.ExchangeRate,
		Plan:           project.psrPlan(),
		Departments:    deptNodes,
		Catalog:        catalog,
		Categories:     catNodes,
		Timesheets:     timesheets,
		PurchaseOrders: purchaseOrders,
		Previous:       previous,
	}, nil
}

// rkManualActual sums the lines of every RK actual adjustment of the category.
func rkManualActual(tx *gorm.DB, projectCostCategoryId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&RKActualAdjustmentLine{}).
		Joins("JOIN rk_actual_adjustments a ON a.id = rk_actual_adjustment_lines.adjustment_id").
		Where("a.project_cost_category_id = ?", projectCostCategoryId).
		Select("SUM(rk_actual_adjustment_lines.amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// regenerateLatestSnapshot regenerates the project's newest snapshot, keeping its
// frequency. Returns nil when the project has none.
func regenerateLatestSnapshot(ctx context.Context, tx *gorm.DB, projectId int, actor string) (*MyDate, error) {
	latest, err := findLatestSnapshot(tx, projectId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := GenerateSnapshotTx(ctx, tx, projectId, latest.SnapshotDate, latest.Frequency, actor); err != nil {
		return nil, fmt.Errorf("regenerate snapshot %s: %w", latest.SnapshotDate.Format("2006-01-02"), err)
	}
	d := NewMyDate(latest.SnapshotDate)
	return &d, nil
}

// GenerateAllSnapshots generates the snapshot of every project as of date. A failing
// project is logged and skipped; the number of failures is returned with the last error.
func GenerateAllSnapshots(ctx context.Context, date time.Time, frequency SnapshotFrequency, actor string) (int, int, error) {
	projects, err := ListProjects(ctx)
	if err != nil {
		return 0, 0, err
	}
	logger := config.GetLogger()
	var generated, failed int
	var lastErr error
	for _, p := range projects {
		if _, err := GenerateSnapshot(ctx, p.ID, date, frequency, actor); err != nil {
			failed++
			lastErr = err
			config.LogError(logger, "PSRSnapshot", "GenerateAllSnapshots", "generate", p.CoNo, err)
			continue
		}
		generated++
	}
	return generated, failed, lastErr
}
