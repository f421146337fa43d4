package models

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/psr_backend/utils"
)

func TestBudgetInputValidate(t *testing.T) {
	cases := []struct {
		name  string
		input NewBudgetHours
		field string
	}{
		{"ok", NewBudgetHours{BudgetHours: decPtr("120"), Note: "re-plan"}, ""},
		{"zero is allowed", NewBudgetHours{BudgetHours: decPtr("0"), Note: "descoped"}, ""},
		{"missing value", NewBudgetHours{Note: "x"}, "budget_hours"},
		{"negative", NewBudgetHours{BudgetHours: decPtr("-1"), Note: "x"}, "budget_hours"},
		{"blank note", NewBudgetHours{BudgetHours: decPtr("1"), Note: "   "}, "note"},
	}
	for _, c := range cases {
		err := c.input.validate()
		if c.field == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", c.name, err)
			}
			continue
		}
		var ve *utils.ValidationError
		if !errors.As(err, &ve) || ve.Field != c.field {
			t.Errorf("%s: err = %v, want validation error on %s", c.name, err, c.field)
		}
	}

	cost := NewBudgetCost{BudgetCost: decPtr("-0.01"), Note: "x"}
	if err := cost.validate(); !utils.IsValidationError(err) {
		t.Errorf("negative budget cost: err = %v", err)
	}
}

func TestLineOverrideValidate(t *testing.T) {
	hours := NewForecastHoursOverride{
		Note: "extra commissioning",
		Lines: []HoursLine{
			{Description: "site", Hours: decPtr("30")},
			{Description: "travel", Hours: decPtr("12.5")},
		},
	}
	total, err := hours.validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !total.Equal(dec("42.5")) {
		t.Fatalf("total = %s, want 42.5", total)
	}

	cases := []struct {
		name  string
		input NewAmountOverride
		field string
	}{
		{"no lines", NewAmountOverride{Note: "x"}, "lines"},
		{"zero line", NewAmountOverride{Note: "x", Lines: []AmountLine{{Amount: decPtr("0")}}}, "lines"},
		{"negative line", NewAmountOverride{Note: "x", Lines: []AmountLine{{Amount: decPtr("10")}, {Amount: decPtr("-10")}}}, "lines"},
		{"missing amount", NewAmountOverride{Note: "x", Lines: []AmountLine{{Description: "a"}}}, "lines"},
		{"blank note", NewAmountOverride{Lines: []AmountLine{{Amount: decPtr("1")}}}, "note"},
	}
	for _, c := range cases {
		_, err := c.input.validate()
		var ve *utils.ValidationError
		if !errors.As(err, &ve) || ve.Field != c.field {
			t.Errorf("%s: err = %v, want validation error on %s", c.name, err, c.field)
		}
	}

	amounts := NewAmountOverride{Note: "hotel", Lines: []AmountLine{{Amount: decPtr("5000")}}}
	if total, err := amounts.validate(); err != nil || !total.Equal(dec("5000")) {
		t.Fatalf("total = %s, err %v", total, err)
	}
}
