package psr

import "github.com/shopspring/decimal"

// RoundForDisplay copies groups with percentages at 2 decimals and every other
// number at 1 decimal. Stored documents keep full precision.
func RoundForDisplay(groups []Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		entries := make([]Entry, len(g.Entries))
		for j, e := range g.Entries {
			entries[j] = Entry{Code: e.Code, Record: roundRecord(e.Record)}
		}
		out[i] = Group{Department: g.Department, Entries: entries}
	}
	return out
}

func roundRecord(r Record) Record {
	return Record{
		ID:                r.ID,
		Inkrement:         r.Inkrement,
		BaselineBudget:    round(r.BaselineBudget, 1),
		LastMonthActuals:  round(r.LastMonthActuals, 1),
		Actuals:           round(r.Actuals, 1),
		Budget:            round(r.Budget, 1),
		Forecast:          round(r.Forecast, 1),
		Prognosis:         round(r.Prognosis, 1),
		Balance:           round(r.Balance, 1),
		BalancePercentage: round(r.BalancePercentage, 2),
		Rest:              round(r.Rest, 1),
		RestPercentage:    round(r.RestPercentage, 2),
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
