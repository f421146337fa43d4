package psr

import (
	"sort"

	"github.com/shopspring/decimal"
)

const RKCategoryCode = "RK"

// Totals are the flattened snapshot fields.
type Totals struct {
	LaborActualHours    decimal.Decimal
	LaborBudgetHours    decimal.Decimal
	LaborForecastHours  decimal.Decimal
	LaborPrognosisHours decimal.Decimal
	LaborActualCost     decimal.Decimal
	LaborBudgetCost     decimal.Decimal
	LaborForecastCost   decimal.Decimal
	LaborPrognosisCost  decimal.Decimal

	MaterialActualCost    decimal.Decimal
	MaterialBudgetCost    decimal.Decimal
	MaterialForecastCost  decimal.Decimal
	MaterialPrognosisCost decimal.Decimal

	TotalBudgetCost    decimal.Decimal
	TotalActualCost    decimal.Decimal
	TotalForecastCost  decimal.Decimal
	TotalPrognosisCost decimal.Decimal

	EffValue     decimal.Decimal
	TerValue     decimal.Decimal
	SumPrognosis decimal.Decimal
	Margin       decimal.Decimal
	Factor       decimal.Decimal
}

// Diagnostics reports how many raw rows found a node.
type Diagnostics struct {
	Timesheets     MatchStats `json:"timesheets"`
	PurchaseOrders MatchStats `json:"purchase_orders"`
}

type Result struct {
	Document      Document
	Totals        Totals
	Diagnostics   Diagnostics
	FirstSnapshot bool
}

// Assemble computes one snapshot. Output order is departments by name, sub-departments by
// code then id, categories by code, independent of input order.
func Assemble(in Input) Result {
	var res Result
	t := &res.Totals

	departments := sortedDepartments(in.Departments)
	labor, laborStats := NewLaborMatcher(departments, in.ExchangeRate).
		Aggregate(in.Timesheets, in.ProjectCode, in.SnapshotDate)
	res.Diagnostics.Timesheets = laborStats

	res.Document.Hours = make([]Group, 0, len(departments))
	res.Document.Cost = make([]Group, 0, len(departments))
	for _, dept := range departments {
		rate := Rate(dept.HourlyRate, in.ExchangeRate)
		hoursGroup := Group{Department: dept.Name, Entries: make([]Entry, 0, len(dept.SubDepartments))}
		costGroup := Group{Department: dept.Name, Entries: make([]Entry, 0, len(dept.SubDepartments))}

		for _, sub := range dept.SubDepartments {
			actual := labor[sub.ID]
			budgetCost := sub.BudgetCost
			budgetHours := CostToHours(budgetCost, rate)

			lastMonthCost := decimal.Zero
			if v, ok := in.Previous.LaborCostActuals(dept.Name, sub.Code); ok {
				lastMonthCost = decimal.NewFromFloat(v)
			}
			lastMonthHours := CostToHours(lastMonthCost, rate)

			hours := Resolve(budgetHours, actual.Hours, sub.ForecastOverride, sub.ForecastHours)
			cost := Resolve(budgetCost, actual.Cost, sub.ForecastOverride, sub.ForecastCost)

			hoursGroup.Entries = append(hoursGroup.Entries, Entry{
				Code:   sub.Code,
				Record: newRecord(sub.ID, sub.Inkrement, sub.BaselineHours, lastMonthHours, actual.Hours, budgetHours, hours),
			})
			costGroup.Entries = append(costGroup.Entries, Entry{
				Code:   sub.Code,
				Record: newRecord(sub.ID, sub.Inkrement, sub.BaselineCost, lastMonthCost, actual.Cost, budgetCost, cost),
			})

			t.LaborActualHours = t.LaborActualHours.Add(actual.Hours)
			t.LaborBudgetHours = t.LaborBudgetHours.Add(budgetHours)
			t.LaborForecastHours = t.LaborForecastHours.Add(hours.Forecast)
			t.LaborPrognosisHours = t.LaborPrognosisHours.Add(hours.Prognosis)
			t.LaborActualCost = t.LaborActualCost.Add(actual.Cost)
			t.LaborBudgetCost = t.LaborBudgetCost.Add(budgetCost)
			t.LaborForecastCost = t.LaborForecastCost.Add(cost.Forecast)
			t.LaborPrognosisCost = t.LaborPrognosisCost.Add(cost.Prognosis)
		}
		res.Document.Hours = append(res.Document.Hours, hoursGroup)
		res.Document.Cost = append(res.Document.Cost, costGroup)
	}

	material, materialStats := NewMaterialMatcher(in.Catalog).Aggregate(in.PurchaseOrders, in.ProjectCode)
	res.Diagnostics.PurchaseOrders = materialStats

	categories := sortedCategories(in.Categories)
	res.Document.CostToGo = make([]Entry, 0, len(categories))
	for _, cat := range categories {
		actual := material[cat.Code]
		if cat.Code == RKCategoryCode && cat.ActualOverride {
			actual = cat.ManualActual
		}

		lastMonth := decimal.Zero
		if v, ok := in.Previous.MaterialActuals(cat.Code); ok {
			lastMonth = decimal.NewFromFloat(v)
		}

		r := Resolve(cat.BudgetCost, actual, cat.ForecastOverride, cat.ForecastCost)
		res.Document.CostToGo = append(res.Document.CostToGo, Entry{
			Code:   cat.Code,
			Record: newRecord(cat.ID, cat.Name, cat.BaselineCost, lastMonth, actual, cat.BudgetCost, r),
		})

		t.MaterialActualCost = t.MaterialActualCost.Add(actual)
		t.MaterialBudgetCost = t.MaterialBudgetCost.Add(cat.BudgetCost)
		t.MaterialForecastCost = t.MaterialForecastCost.Add(r.Forecast)
		t.MaterialPrognosisCost = t.MaterialPrognosisCost.Add(r.Prognosis)
	}

	t.EffValue = in.Plan.EffValue
	t.TerValue = in.Plan.TerValue

	if t.LaborActualCost.IsZero() && t.MaterialActualCost.IsZero() {
		// Nothing booked yet: the plan is the best prognosis available.
		res.FirstSnapshot = true
		t.TotalBudgetCost = in.Plan.ActualBudget
		t.SumPrognosis = in.Plan.ActualBudget.Add(t.EffValue).Add(t.TerValue)
		t.Margin = in.Plan.SalesValue.Sub(t.SumPrognosis)
		t.Factor = in.Plan.Factor
		t.TotalActualCost = decimal.Zero
		t.TotalForecastCost = t.SumPrognosis
		t.TotalPrognosisCost = t.SumPrognosis
		return res
	}

	t.SumPrognosis = t.LaborPrognosisCost.Add(t.MaterialPrognosisCost).Add(t.EffValue).Add(t.TerValue)
	t.Margin = in.Plan.SalesValue.Sub(t.SumPrognosis)
	if t.SumPrognosis.IsPositive() {
		t.Factor = in.Plan.SalesValue.Div(t.SumPrognosis)
	} else {
		t.Factor = decimal.Zero
	}
	t.TotalActualCost = t.LaborActualCost.Add(t.MaterialActualCost)
	t.TotalBudgetCost = t.LaborBudgetCost.Add(t.MaterialBudgetCost)
	t.TotalForecastCost = t.LaborForecastCost.Add(t.MaterialForecastCost)
	t.TotalPrognosisCost = t.SumPrognosis
	return res
}

func sortedDepartments(in []DepartmentNode) []DepartmentNode {
	out := make([]DepartmentNode, len(in))
	for i, d := range in {
		subs := append([]SubDepartmentNode(nil), d.SubDepartments...)
		sort.SliceStable(subs, func(a, b int) bool {
			if subs[a].Code != subs[b].Code {
				return subs[a].Code < subs[b].Code
			}
			return subs[a].ID < subs[b].ID
		})
		d.SubDepartments = subs
		out[i] = d
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func sortedCategories(in []CategoryNode) []CategoryNode {
	out := append([]CategoryNode(nil), in...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Code != out[b].Code {
			return out[a].Code < out[b].Code
		}
		return out[a].ID < out[b].ID
	})
	return out
}
