package psr

import "github.com/shopspring/decimal"

type PlanInput struct {
	SalesValueForeign decimal.Decimal
	ExchangeRate      decimal.Decimal
	EbitPercentage    decimal.Decimal
	SgnaPercentage    decimal.Decimal
	EffPercentage     decimal.Decimal
	TerPercentage     decimal.Decimal
}

// FinancialPlan is the derived part of a project.
type FinancialPlan struct {
	SalesValue             decimal.Decimal
	EbitValue              decimal.Decimal
	SgnaValue              decimal.Decimal
	CostWithSgna           decimal.Decimal
	Hk                     decimal.Decimal
	DirectMarginValue      decimal.Decimal
	DirectMarginPercentage decimal.Decimal
	TerValue               decimal.Decimal
	EffValue               decimal.Decimal
	ActualBudget           decimal.Decimal
	Factor                 decimal.Decimal
	Budget                 decimal.Decimal
}

// Equal compares field by field with decimal equality (scale-insensitive).
func (p FinancialPlan) Equal(o FinancialPlan) bool {
	return p.SalesValue.Equal(o.SalesValue) &&
		p.EbitValue.Equal(o.EbitValue) &&
		p.SgnaValue.Equal(o.SgnaValue) &&
		p.CostWithSgna.Equal(o.CostWithSgna) &&
		p.Hk.Equal(o.Hk) &&
		p.DirectMarginValue.Equal(o.DirectMarginValue) &&
		p.DirectMarginPercentage.Equal(o.DirectMarginPercentage) &&
		p.TerValue.Equal(o.TerValue) &&
		p.EffValue.Equal(o.EffValue) &&
		p.ActualBudget.Equal(o.ActualBudget) &&
		p.Factor.Equal(o.Factor) &&
		p.Budget.Equal(o.Budget)
}

// CalculateFinancialPlan derives the plan from in, starting from current.
// A zero foreign value or rate keeps current.SalesValue; a non-positive sales value
// leaves every other derived field as it was.
func CalculateFinancialPlan(in PlanInput, current FinancialPlan) FinancialPlan {
	plan := current

	if !in.SalesValueForeign.IsZero() && !in.ExchangeRate.IsZero() {
		plan.SalesValue = in.SalesValueForeign.Mul(in.ExchangeRate)
	}

	sales := plan.SalesValue
	if !sales.IsPositive() {
		return plan
	}

	plan.EbitValue = sales.Mul(in.EbitPercentage).Div(hundred)
	plan.SgnaValue = sales.Mul(in.SgnaPercentage).Div(hundred)
	plan.CostWithSgna = sales.Sub(plan.EbitValue)
	plan.Hk = plan.CostWithSgna.Sub(plan.SgnaValue)
	plan.DirectMarginValue = sales.Sub(plan.Hk)
	plan.DirectMarginPercentage = plan.DirectMarginValue.Div(sales).Mul(hundred)
	plan.TerValue = sales.Mul(in.TerPercentage).Div(hundred)
	plan.EffValue = sales.Mul(in.EffPercentage).Div(hundred)
	plan.ActualBudget = plan.Hk.Sub(plan.TerValue).Sub(plan.EffValue)
	if plan.Hk.IsPositive() {
		plan.Factor = sales.Div(plan.Hk)
	} else {
		plan.Factor = decimal.Zero
	}
	plan.Budget = plan.ActualBudget
	return plan
}

// Round rounds every field to places, the scale money columns are stored at.
func (p FinancialPlan) Round(places int32) FinancialPlan {
	return FinancialPlan{
		SalesValue:             p.SalesValue.Round(places),
		EbitValue:              p.EbitValue.Round(places),
		SgnaValue:              p.SgnaValue.Round(places),
		CostWithSgna:           p.CostWithSgna.Round(places),
		Hk:                     p.Hk.Round(places),
		DirectMarginValue:      p.DirectMarginValue.Round(places),
		DirectMarginPercentage: p.DirectMarginPercentage.Round(places),
		TerValue:               p.TerValue.Round(places),
		EffValue:               p.EffValue.Round(places),
		ActualBudget:           p.ActualBudget.Round(places),
		Factor:                 p.Factor.Round(places),
		Budget:                 p.Budget.Round(places),
	}
}
