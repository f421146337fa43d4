package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PSRSnapshot is the point-in-time report of one project. One row per (project, date);
// regeneration replaces the row in a single statement.
type PSRSnapshot struct {
	ID           int               `gorm:"primary_key" json:"id"`
	ProjectId    int               `gorm:"uniqueIndex:idx_project_snapshot_date,priority:1;not null" json:"project_id"`
	SnapshotDate time.Time         `gorm:"type:date;uniqueIndex:idx_project_snapshot_date,priority:2;index;not null" json:"snapshot_date"`
	Frequency    SnapshotFrequency `gorm:"type:enum('MONTHLY','BIWEEKLY','WEEKLY');default:MONTHLY" json:"frequency"`
	Data         psr.Document      `gorm:"type:longtext" json:"data"`

	LaborActualHours    decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"labor_actual_hours"`
	LaborBudgetHours    decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"labor_budget_hours"`
	LaborForecastHours  decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"labor_forecast_hours"`
	LaborPrognosisHours decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"labor_prognosis_hours"`
	LaborActualCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_actual_cost"`
	LaborBudgetCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_budget_cost"`
	LaborForecastCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_forecast_cost"`
	LaborPrognosisCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_prognosis_cost"`

	MaterialActualCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_actual_cost"`
	MaterialBudgetCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_budget_cost"`
	MaterialForecastCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_forecast_cost"`
	MaterialPrognosisCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_prognosis_cost"`

	TotalBudgetCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_budget_cost"`
	TotalActualCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_actual_cost"`
	TotalForecastCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_forecast_cost"`
	TotalPrognosisCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_prognosis_cost"`

	EffValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"eff_value"`
	TerValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ter_value"`
	SumPrognosis decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sum_prognosis"`
	Margin       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin"`
	Factor       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"factor"`

	GeneratedAt time.Time `gorm:"not null" json:"generated_at"`
	GeneratedBy string    `gorm:"size:100;not null" json:"generated_by"`
}

func (PSRSnapshot) TableName() string {
	return "psr_snapshots"
}

func (s *PSRSnapshot) setTotals(t psr.Totals) {
	s.LaborActualHours = t.LaborActualHours.Round(hoursScale)
	s.LaborBudgetHours = t.LaborBudgetHours.Round(hoursScale)
	s.LaborForecastHours = t.LaborForecastHours.Round(hoursScale)
	s.LaborPrognosisHours = t.LaborPrognosisHours.Round(hoursScale)
	s.LaborActualCost = t.LaborActualCost.Round(moneyScale)
	s.LaborBudgetCost = t.LaborBudgetCost.Round(moneyScale)
	s.LaborForecastCost = t.LaborForecastCost.Round(moneyScale)
	s.LaborPrognosisCost = t.LaborPrognosisCost.Round(moneyScale)
	s.MaterialActualCost = t.MaterialActualCost.Round(moneyScale)
	s.MaterialBudgetCost = t.MaterialBudgetCost.Round(moneyScale)
	s.MaterialForecastCost = t.MaterialForecastCost.Round(moneyScale)
	s.MaterialPrognosisCost = t.MaterialPrognosisCost.Round(moneyScale)
	s.TotalBudgetCost = t.TotalBudgetCost.Round(moneyScale)
	s.TotalActualCost = t.TotalActualCost.Round(moneyScale)
	s.TotalForecastCost = t.TotalForecastCost.Round(moneyScale)
	s.TotalPrognosisCost = t.TotalPrognosisCost.Round(moneyScale)
	s.EffValue = t.EffValue.Round(moneyScale)
	s.TerValue = t.TerValue.Round(moneyScale)
	s.SumPrognosis = t.SumPrognosis.Round(moneyScale)
	s.Margin = t.Margin.Round(moneyScale)
	s.Factor = t.Factor.Round(moneyScale)
}

// KPI is the headline figures of the snapshot, with the project's sales value.
func (s *PSRSnapshot) KPI(salesValue decimal.Decimal) psr.KPI {
	return psr.KPI{
		SalesValue:         salesValue,
		TotalBudgetCost:    s.TotalBudgetCost,
		TerValue:           s.TerValue,
		EffValue:           s.EffValue,
		TotalActualCost:    s.TotalActualCost,
		TotalForecastCost:  s.TotalForecastCost,
		TotalPrognosisCost: s.TotalPrognosisCost,
		Margin:             s.Margin,
		Factor:             s.Factor,
	}
}

// upsertSnapshot writes s with INSERT ... ON DUPLICATE KEY UPDATE and reloads the stored row.
func upsertSnapshot(tx *gorm.DB, s *PSRSnapshot) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "snapshot_date"}},
		UpdateAll: true,
	}).Create(s).Error
	if err != nil {
		return err
	}
	// the auto-increment id is not reliable after the update branch
	return tx.Where("project_id = ? AND snapshot_date = ?", s.ProjectId, s.SnapshotDate).First(s).Error
}

func findSnapshot(tx *gorm.DB, projectId int, date time.Time) (*PSRSnapshot, error) {
	var result PSRSnapshot
	err := tx.Where("project_id = ? AND snapshot_date = ?", projectId, psr.DateOnly(date)).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func findLatestSnapshot(tx *gorm.DB, projectId int) (*PSRSnapshot, error) {
	var result PSRSnapshot
	err := tx.Where("project_id = ?", projectId).Order("snapshot_date DESC").First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// (may return RecordNotFound)
func GetSnapshot(ctx context.Context, projectId int, date time.Time) (*PSRSnapshot, error) {
	return findSnapshot(config.GetDB().WithContext(ctx), projectId, date)
}

// (may return RecordNotFound)
func GetLatestSnapshot(ctx context.Context, projectId int) (*PSRSnapshot, error) {
	return findLatestSnapshot(config.GetDB().WithContext(ctx), projectId)
}

// findPreviousMonthSnapshot returns the snapshot dated on the last day of the month
// before date's month, whatever frequency either snapshot has.
func findPreviousMonthSnapshot(tx *gorm.DB, projectId int, date time.Time) (*PSRSnapshot, error) {
	return findSnapshot(tx, projectId, psr.PreviousMonthEnd(date))
}

// (may return RecordNotFound)
func GetPreviousMonthSnapshot(ctx context.Context, projectId int, date time.Time) (*PSRSnapshot, error) {
	return findPreviousMonthSnapshot(config.GetDB().WithContext(ctx), projectId, date)
}

// ListSnapshots returns the project's snapshots oldest first with their totals only;
// the documents are left out.
func ListSnapshots(ctx context.Context, projectId int) ([]*PSRSnapshot, error) {
	var results []*PSRSnapshot
	err := config.GetDB().WithContext(ctx).Omit("data").
		Where("project_id = ?", projectId).Order("snapshot_date").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
