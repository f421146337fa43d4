package psr

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// KPI is the headline of one snapshot, with the project's sales value.
type KPI struct {
	SalesValue         decimal.Decimal `json:"sales_value"`
	TotalBudgetCost    decimal.Decimal `json:"total_budget_cost"`
	TerValue           decimal.Decimal `json:"ter_value"`
	EffValue           decimal.Decimal `json:"eff_value"`
	TotalActualCost    decimal.Decimal `json:"total_actual_cost"`
	TotalForecastCost  decimal.Decimal `json:"total_forecast_cost"`
	TotalPrognosisCost decimal.Decimal `json:"total_prognosis_cost"`
	Margin             decimal.Decimal `json:"margin"`
	Factor             decimal.Decimal `json:"factor"`
}

func (k KPI) add(o KPI) KPI {
	return KPI{
		SalesValue:         k.SalesValue.Add(o.SalesValue),
		TotalBudgetCost:    k.TotalBudgetCost.Add(o.TotalBudgetCost),
		TerValue:           k.TerValue.Add(o.TerValue),
		EffValue:           k.EffValue.Add(o.EffValue),
		TotalActualCost:    k.TotalActualCost.Add(o.TotalActualCost),
		TotalForecastCost:  k.TotalForecastCost.Add(o.TotalForecastCost),
		TotalPrognosisCost: k.TotalPrognosisCost.Add(o.TotalPrognosisCost),
		Margin:             k.Margin.Add(o.Margin),
		Factor:             k.Factor.Add(o.Factor),
	}
}

type DatedKPI struct {
	Date time.Time
	KPI
}

type MonthlyKPI struct {
	Month string `json:"month"`
	KPI
}

// CumulateMonthly sums snapshot KPIs per calendar month, newest month first.
// Factor is the average of the month's snapshot factors, rounded to 4 decimals.
func CumulateMonthly(rows []DatedKPI) []MonthlyKPI {
	type bucket struct {
		first time.Time
		sum   KPI
		count int64
	}
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		key := row.Date.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{first: time.Date(row.Date.Year(), row.Date.Month(), 1, 0, 0, 0, 0, time.UTC)}
			buckets[key] = b
		}
		b.sum = b.sum.add(row.KPI)
		b.count++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	result := make([]MonthlyKPI, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		kpi := b.sum
		kpi.Factor = b.sum.Factor.Div(decimal.NewFromInt(b.count)).Round(4)
		result = append(result, MonthlyKPI{Month: MonthLabel(b.first), KPI: kpi})
	}
	return result
}

type LandingSummary struct {
	TotalSalesValue decimal.Decimal `json:"total_sales_value"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	TotalTer        decimal.Decimal `json:"total_ter"`
	TotalEff        decimal.Decimal `json:"total_eff"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	TotalForecast   decimal.Decimal `json:"total_forecast"`
	TotalPrognosis  decimal.Decimal `json:"total_prognosis"`
	AverageFactor   decimal.Decimal `json:"average_factor"`
}

// ProjectLatest is one project with its latest snapshot KPI, nil when it has none.
type ProjectLatest struct {
	SalesValue decimal.Decimal
	Latest     *KPI
}

// SummarizeLanding adds every project's sales value, and the latest-snapshot totals of
// projects that have one. The factor average only covers projects with a snapshot.
func SummarizeLanding(projects []ProjectLatest) LandingSummary {
	var s LandingSummary
	var factors decimal.Decimal
	var count int64
	for _, p := range projects {
		s.TotalSalesValue = s.TotalSalesValue.Add(p.SalesValue)
		if p.Latest == nil {
			continue
		}
		s.TotalBudget = s.TotalBudget.Add(p.Latest.TotalBudgetCost)
		s.TotalTer = s.TotalTer.Add(p.Latest.TerValue)
		s.TotalEff = s.TotalEff.Add(p.Latest.EffValue)
		s.TotalActual = s.TotalActual.Add(p.Latest.TotalActualCost)
		s.TotalForecast = s.TotalForecast.Add(p.Latest.TotalForecastCost)
		s.TotalPrognosis = s.TotalPrognosis.Add(p.Latest.TotalPrognosisCost)
		factors = factors.Add(p.Latest.Factor)
		count++
	}
	if count > 0 {
		s.AverageFactor = factors.Div(decimal.NewFromInt(count))
	}
	return s
}
