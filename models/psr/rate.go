// Package psr is the project status report engine: matching raw labor and material
// records to the budget hierarchy, resolving forecasts and assembling snapshot documents.
// It does no I/O; models loads the inputs and persists the result.
package psr

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rate is the base-currency cost of one hour: hourly_rate × exchange_rate.
// Every hours↔cost conversion in the code base goes through it.
func Rate(hourlyRate, exchangeRate decimal.Decimal) decimal.Decimal {
	return hourlyRate.Mul(exchangeRate)
}

// CostToHours returns 0 when rate is not positive.
func CostToHours(cost, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return cost.Div(rate)
}

func HoursToCost(hours, rate decimal.Decimal) decimal.Decimal {
	return hours.Mul(rate)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PreviousMonthEnd is the last day of the month before d's month.
// Snapshots always compare against it, whatever their frequency.
func PreviousMonthEnd(d time.Time) time.Time {
	y, m, _ := d.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// MonthLabel formats d as "January 2025".
func MonthLabel(d time.Time) string {
	return d.Format("January 2006")
}
