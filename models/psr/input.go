package psr

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is the financial-plan slice of a project the assembler needs.
type Plan struct {
	SalesValue   decimal.Decimal
	ActualBudget decimal.Decimal
	EffValue     decimal.Decimal
	TerValue     decimal.Decimal
	Factor       decimal.Decimal
}

type SubDepartmentNode struct {
	ID               int
	Code             string
	RoleDescription  string
	Inkrement        string
	BaselineHours    decimal.Decimal
	BaselineCost     decimal.Decimal
	BudgetCost       decimal.Decimal
	ForecastOverride bool
	ForecastHours    decimal.Decimal
	ForecastCost     decimal.Decimal
}

type DepartmentNode struct {
	ID             int
	Name           string
	HourlyRate     decimal.Decimal
	SubDepartments []SubDepartmentNode
}

// CostCategoryRef is one entry of the global category list, used for PO matching.
type CostCategoryRef struct {
	Code    string
	MatCode string
}

// CategoryNode is a cost category the project budgets for.
type CategoryNode struct {
	ID               int
	Code             string
	Name             string
	BaselineCost     decimal.Decimal
	BudgetCost       decimal.Decimal
	ForecastOverride bool
	ForecastCost     decimal.Decimal
	ActualOverride   bool
	// ManualActual is the sum of the RK adjustment lines.
	ManualActual decimal.Decimal
}

type TimesheetRow struct {
	Date            time.Time
	ProjectCode     string
	RoleDescription string
	Hours           decimal.Decimal
}

type PurchaseOrderRow struct {
	ProjectCode string
	MatCode     string
	Value       decimal.Decimal
}

// Input is everything one snapshot is computed from.
type Input struct {
	ProjectCode    string
	SnapshotDate   time.Time
	ExchangeRate   decimal.Decimal
	Plan           Plan
	Departments    []DepartmentNode
	Catalog        []CostCategoryRef
	Categories     []CategoryNode
	Timesheets     []TimesheetRow
	PurchaseOrders []PurchaseOrderRow
	// Previous is the snapshot at PreviousMonthEnd(SnapshotDate), nil when absent.
	Previous *Document
}
