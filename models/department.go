package models

import (
	"time"

	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// hours keep 8 places so hours × rate lands back on the stored cost
const hoursScale int32 = 8

type Department struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ProjectId      int             `gorm:"uniqueIndex:idx_project_department;not null" json:"project_id"`
	Name           DepartmentName  `gorm:"uniqueIndex:idx_project_department;type:enum('PROJECT_MANAGEMENT','MECHANICAL_DESIGN','ELECTRICAL_DESIGN','IN_HOUSE_COMMISSIONING','MECHANICAL_INSTALLATION','ELECTRICAL_INSTALLATION','ON_SITE_COMMISSIONING','SUPPORT_FUNCTION');not null" json:"name"`
	HourlyRate     decimal.Decimal `gorm:"type:decimal(20,4);default:2000" json:"hourly_rate"`
	BudgetHours    decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"budget_hours"`
	BudgetCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_cost"`
	SubDepartments []SubDepartment `gorm:"foreignKey:DepartmentId" json:"sub_departments,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Rate is the base-currency cost of one hour in this department.
func (d *Department) Rate(exchangeRate decimal.Decimal) decimal.Decimal {
	return psr.Rate(d.HourlyRate, exchangeRate)
}

// refreshTotals sums the loaded sub-departments into the department budget.
func (d *Department) refreshTotals() {
	cost, hours := decimal.Zero, decimal.Zero
	for _, sub := range d.SubDepartments {
		cost = cost.Add(sub.BudgetCost)
		hours = hours.Add(sub.BudgetHours)
	}
	d.BudgetCost = cost
	d.BudgetHours = hours
}

// resync re-derives every sub-department from its cost at the current rate and stores
// the department with its new totals. SubDepartments must be loaded.
func (d *Department) resync(tx *gorm.DB, exchangeRate decimal.Decimal) error {
	rate := d.Rate(exchangeRate)
	for i := range d.SubDepartments {
		sub := &d.SubDepartments[i]
		sub.SyncBudget(rate)
		if err := tx.Model(sub).UpdateColumns(map[string]interface{}{
			"budget_hours":  sub.BudgetHours,
			"forecast_cost": sub.ForecastCost,
		}).Error; err != nil {
			return err
		}
	}
	d.refreshTotals()
	return tx.Model(d).UpdateColumns(map[string]interface{}{
		"hourly_rate":  d.HourlyRate,
		"budget_hours": d.BudgetHours,
		"budget_cost":  d.BudgetCost,
	}).Error
}

// refreshDepartmentTotals recomputes the stored sums from the sub_departments table.
func refreshDepartmentTotals(tx *gorm.DB, departmentId int) error {
	return tx.Exec(`
	UPDATE departments d SET
		d.budget_cost = (SELECT COALESCE(SUM(s.budget_cost), 0) FROM sub_departments s WHERE s.department_id = d.id),
		d.budget_hours = (SELECT COALESCE(SUM(s.budget_hours), 0) FROM sub_departments s WHERE s.department_id = d.id)
	WHERE d.id = ?`, departmentId).Error
}

type SubDepartment struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	DepartmentId        int             `gorm:"uniqueIndex:idx_department_code;not null" json:"department_id"`
	Code                string          `gorm:"uniqueIndex:idx_department_code;size:50;not null" json:"code"`
	RoleDescrptn        string          `gorm:"size:255" json:"role_descrptn"`
	Inkrement           string          `gorm:"size:255" json:"inkrement"`
	BaselineBudgetHours decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"baseline_budget_hours"`
	BaselineBudgetCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"baseline_budget_cost"`
	BudgetHours         decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"budget_hours"`
	BudgetCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_cost"`
	ForecastHours       decimal.Decimal `gorm:"type:decimal(24,8);default:0" json:"forecast_hours"`
	ForecastCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"forecast_cost"`
	ForecastOverride    bool            `gorm:"not null;default:false" json:"forecast_override"`
	ForecastOverrideBy  string          `gorm:"size:100" json:"forecast_override_by"`
	ForecastOverrideAt  *time.Time      `json:"forecast_override_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncBudget derives budget hours from the budget cost, and the overridden forecast cost
// from its hours. Cost is the primary budget value.
func (s *SubDepartment) SyncBudget(rate decimal.Decimal) {
	s.BudgetHours = psr.CostToHours(s.BudgetCost, rate).Round(hoursScale)
	if s.ForecastOverride {
		s.ForecastCost = psr.HoursToCost(s.ForecastHours, rate).Round(moneyScale)
	}
}

func (s *SubDepartment) node() psr.SubDepartmentNode {
	return psr.SubDepartmentNode{
		ID:               s.ID,
		Code:             s.Code,
		RoleDescription:  s.RoleDescrptn,
		Inkrement:        s.Inkrement,
		BaselineHours:    s.BaselineBudgetHours,
		BaselineCost:     s.BaselineBudgetCost,
		BudgetCost:       s.BudgetCost,
		ForecastOverride: s.ForecastOverride,
		ForecastHours:    s.ForecastHours,
		ForecastCost:     s.ForecastCost,
	}
}

type CostCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	MatCode   string    `gorm:"size:100;uniqueIndex" json:"mat_code"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectCostCategory struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	ProjectId          int             `gorm:"uniqueIndex:idx_project_cost_category;not null" json:"project_id"`
	CostCategoryId     int             `gorm:"uniqueIndex:idx_project_cost_category;not null" json:"cost_category_id"`
	CostCategory       CostCategory    `gorm:"foreignKey:CostCategoryId" json:"cost_category"`
	BaselineBudgetCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"baseline_budget_cost"`
	BudgetCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_cost"`
	ForecastCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"forecast_cost"`
	ForecastOverride   bool            `gorm:"not null;default:false" json:"forecast_override"`
	ActualOverride     bool            `gorm:"not null;default:false" json:"actual_override"`
	ForecastOverrideBy string          `gorm:"size:100" json:"forecast_override_by"`
	ForecastOverrideAt *time.Time      `json:"forecast_override_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *ProjectCostCategory) IsRK() bool {
	return p.CostCategory.Code == psr.RKCategoryCode
}

func (p *ProjectCostCategory) node(manualActual decimal.Decimal) psr.CategoryNode {
	return psr.CategoryNode{
		ID:               p.ID,
		Code:             p.CostCategory.Code,
		Name:             p.CostCategory.Name,
		BaselineCost:     p.BaselineBudgetCost,
		BudgetCost:       p.BudgetCost,
		ForecastOverride: p.ForecastOverride,
		ForecastCost:     p.ForecastCost,
		ActualOverride:   p.ActualOverride,
		ManualActual:     manualActual,
	}
}
