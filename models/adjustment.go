package models

import (
	"strings"
	"time"

	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
)

// Audit rows. Adjustments are written once per mutation and never edited, except the
// single RK actual adjustment of a category which is rewritten together with its lines.

type SubDepartmentBudgetAdjustment struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	SubDepartmentId     int             `gorm:"index;not null" json:"sub_department_id"`
	AdjustedBy          string          `gorm:"size:100;not null" json:"adjusted_by"`
	Note                string          `gorm:"type:text;not null" json:"note"`
	PreviousBudgetHours decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"previous_budget_hours"`
	NewBudgetHours      decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"new_budget_hours"`
	PreviousBudgetCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_budget_cost"`
	NewBudgetCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"new_budget_cost"`
	AdjustedAt          time.Time       `gorm:"autoCreateTime" json:"adjusted_at"`
}

type ProjectCostCategoryBudgetAdjustment struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	ProjectCostCategoryId int             `gorm:"index;not null" json:"project_cost_category_id"`
	AdjustedBy            string          `gorm:"size:100;not null" json:"adjusted_by"`
	Note                  string          `gorm:"type:text;not null" json:"note"`
	PreviousBudgetCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_budget_cost"`
	NewBudgetCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"new_budget_cost"`
	AdjustedAt            time.Time       `gorm:"autoCreateTime" json:"adjusted_at"`
}

type ForecastAdjustment struct {
	ID                    int                      `gorm:"primary_key" json:"id"`
	SubDepartmentId       int                      `gorm:"index;not null" json:"sub_department_id"`
	AdjustedBy            string                   `gorm:"size:100;not null" json:"adjusted_by"`
	Note                  string                   `gorm:"type:text;not null" json:"note"`
	PreviousForecastHours decimal.Decimal          `gorm:"type:decimal(24,8);default:0" json:"previous_forecast_hours"`
	NewForecastHours      decimal.Decimal          `gorm:"type:decimal(24,8);default:0" json:"new_forecast_hours"`
	Lines                 []ForecastAdjustmentLine `gorm:"foreignKey:AdjustmentId" json:"lines"`
	AdjustedAt            time.Time                `gorm:"autoCreateTime" json:"adjusted_at"`
}

type ForecastAdjustmentLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	AdjustmentId int             `gorm:"index;not null" json:"adjustment_id"`
	Description  string          `gorm:"size:255" json:"description"`
	Hours        decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"hours"`
}

type MaterialForecastAdjustment struct {
	ID                    int                              `gorm:"primary_key" json:"id"`
	ProjectCostCategoryId int                              `gorm:"index;not null" json:"project_cost_category_id"`
	AdjustedBy            string                           `gorm:"size:100;not null" json:"adjusted_by"`
	Note                  string                           `gorm:"type:text;not null" json:"note"`
	PreviousForecastCost  decimal.Decimal                  `gorm:"type:decimal(20,4);default:0" json:"previous_forecast_cost"`
	NewForecastCost       decimal.Decimal                  `gorm:"type:decimal(20,4);default:0" json:"new_forecast_cost"`
	Lines                 []MaterialForecastAdjustmentLine `gorm:"foreignKey:AdjustmentId" json:"lines"`
	AdjustedAt            time.Time                        `gorm:"autoCreateTime" json:"adjusted_at"`
}

type MaterialForecastAdjustmentLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	AdjustmentId int             `gorm:"index;not null" json:"adjustment_id"`
	Description  string          `gorm:"size:255" json:"description"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

// RKActualAdjustment is the one manual actual record of an RK project cost category.
type RKActualAdjustment struct {
	ID                    int                      `gorm:"primary_key" json:"id"`
	ProjectCostCategoryId int                      `gorm:"uniqueIndex;not null" json:"project_cost_category_id"`
	AdjustedBy            string                   `gorm:"size:100;not null" json:"adjusted_by"`
	Note                  string                   `gorm:"type:text;not null" json:"note"`
	PreviousTotal         decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"previous_total"`
	NewTotal              decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"new_total"`
	Lines                 []RKActualAdjustmentLine `gorm:"foreignKey:AdjustmentId" json:"lines"`
	AdjustedAt            time.Time                `gorm:"not null" json:"adjusted_at"`
}

type RKActualAdjustmentLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	AdjustmentId int             `gorm:"index;not null" json:"adjustment_id"`
	Description  string          `gorm:"size:255" json:"description"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

/* inputs */

type NewBudgetHours struct {
	BudgetHours *decimal.Decimal `json:"budget_hours"`
	Note        string           `json:"note"`
}

type NewBudgetCost struct {
	BudgetCost *decimal.Decimal `json:"budget_cost"`
	Note       string           `json:"note"`
}

type HoursLine struct {
	Description string           `json:"description"`
	Hours       *decimal.Decimal `json:"hours"`
}

type AmountLine struct {
	Description string           `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
}

type NewForecastHoursOverride struct {
	Note  string      `json:"note"`
	Lines []HoursLine `json:"lines"`
}

// NewAmountOverride replaces the line set of a material forecast or RK actual override.
type NewAmountOverride struct {
	Note  string       `json:"note"`
	Lines []AmountLine `json:"lines"`
}

func validateNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return utils.NewValidationError("note", "note (reason for change) is required")
	}
	return nil
}

func validateBudgetValue(field string, v *decimal.Decimal) error {
	if v == nil {
		return utils.NewValidationError(field, field+" is required")
	}
	if v.IsNegative() {
		return utils.NewValidationError(field, field+" must be >= 0")
	}
	return nil
}

// validateLines checks every value is strictly positive and returns their total.
func validateLines(field string, values []*decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, utils.NewValidationError("lines", "at least one line is required")
	}
	total := decimal.Zero
	for _, v := range values {
		if v == nil || !v.IsPositive() {
			return decimal.Zero, utils.NewValidationError("lines", "each line must have a positive "+field)
		}
		total = total.Add(*v)
	}
	if total.IsZero() {
		return decimal.Zero, utils.NewValidationError("lines", "total "+field+" cannot be zero")
	}
	return total, nil
}

func (input *NewBudgetHours) validate() error {
	if err := validateBudgetValue("budget_hours", input.BudgetHours); err != nil {
		return err
	}
	return validateNote(input.Note)
}

func (input *NewBudgetCost) validate() error {
	if err := validateBudgetValue("budget_cost", input.BudgetCost); err != nil {
		return err
	}
	return validateNote(input.Note)
}

func (input *NewForecastHoursOverride) validate() (decimal.Decimal, error) {
	if err := validateNote(input.Note); err != nil {
		return decimal.Zero, err
	}
	values := make([]*decimal.Decimal, len(input.Lines))
	for i, l := range input.Lines {
		values[i] = l.Hours
	}
	return validateLines("hours", values)
}

func (input *NewAmountOverride) validate() (decimal.Decimal, error) {
	if err := validateNote(input.Note); err != nil {
		return decimal.Zero, err
	}
	values := make([]*decimal.Decimal, len(input.Lines))
	for i, l := range input.Lines {
		values[i] = l.Amount
	}
	return validateLines("amount", values)
}
