package psr

import "github.com/shopspring/decimal"

// Resolution is the forecast side of one node in one domain (hours or cost).
type Resolution struct {
	Forecast          decimal.Decimal
	Prognosis         decimal.Decimal
	Balance           decimal.Decimal
	BalancePercentage decimal.Decimal
	RestPercentage    decimal.Decimal
}

// Resolve applies override precedence: a set override wins over max(budget − actual, 0).
func Resolve(budget, actual decimal.Decimal, override bool, overrideValue decimal.Decimal) Resolution {
	var r Resolution
	if override {
		r.Forecast = overrideValue
	} else {
		r.Forecast = decimal.Max(budget.Sub(actual), decimal.Zero)
	}
	r.Prognosis = actual.Add(r.Forecast)
	r.Balance = budget.Sub(r.Prognosis)
	if !r.Prognosis.IsZero() {
		r.BalancePercentage = budget.Div(r.Prognosis).Mul(hundred).Round(2)
	}
	// prognosis over actual; the name is historical and consumers read it as is
	if !actual.IsZero() {
		r.RestPercentage = r.Prognosis.Div(actual).Mul(hundred).Round(2)
	}
	return r
}

func newRecord(id int, inkrement string, baseline, lastMonth, actual, budget decimal.Decimal, r Resolution) Record {
	return Record{
		ID:                id,
		Inkrement:         inkrement,
		BaselineBudget:    baseline.InexactFloat64(),
		LastMonthActuals:  lastMonth.InexactFloat64(),
		Actuals:           actual.InexactFloat64(),
		Budget:            budget.InexactFloat64(),
		Forecast:          r.Forecast.InexactFloat64(),
		Prognosis:         r.Prognosis.InexactFloat64(),
		Balance:           r.Balance.InexactFloat64(),
		BalancePercentage: r.BalancePercentage.InexactFloat64(),
		Rest:              r.Forecast.InexactFloat64(),
		RestPercentage:    r.RestPercentage.InexactFloat64(),
	}
}
