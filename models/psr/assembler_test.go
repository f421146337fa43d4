package psr

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(y int, m time.Month, dd int) time.Time { return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC) }

// singleSubInput is project P1 with one sub-department S1: budget 10000, rate 100, exchange 1.
func singleSubInput() Input {
	return Input{
		ProjectCode:  "P1",
		SnapshotDate: day(2025, 1, 31),
		ExchangeRate: d("1"),
		Plan: Plan{
			SalesValue:   d("20000"),
			ActualBudget: d("14000"),
			EffValue:     d("500"),
			TerValue:     d("500"),
			Factor:       d("1.25"),
		},
		Departments: []DepartmentNode{{
			ID:         1,
			Name:       "MECHANICAL_DESIGN",
			HourlyRate: d("100"),
			SubDepartments: []SubDepartmentNode{{
				ID:              11,
				Code:            "S1",
				RoleDescription: "Engineering Detailing DET",
				Inkrement:       "Detailing",
				BaselineHours:   d("100"),
				BaselineCost:    d("10000"),
				BudgetCost:      d("10000"),
			}},
		}},
	}
}

func hoursRecord(t *testing.T, doc Document, dept, code string) Record {
	t.Helper()
	for _, g := range doc.Hours {
		if g.Department != dept {
			continue
		}
		for _, e := range g.Entries {
			if e.Code == code {
				return e.Record
			}
		}
	}
	t.Fatalf("no hours record for %s/%s", dept, code)
	return Record{}
}

func costRecord(t *testing.T, doc Document, dept, code string) Record {
	t.Helper()
	for _, g := range doc.Cost {
		if g.Department != dept {
			continue
		}
		for _, e := range g.Entries {
			if e.Code == code {
				return e.Record
			}
		}
	}
	t.Fatalf("no cost record for %s/%s", dept, code)
	return Record{}
}

func categoryRecord(t *testing.T, doc Document, code string) Record {
	t.Helper()
	for _, e := range doc.CostToGo {
		if e.Code == code {
			return e.Record
		}
	}
	t.Fatalf("no cost-to-go record for %s", code)
	return Record{}
}

func TestAssembleWithoutTimesheets(t *testing.T) {
	res := Assemble(singleSubInput())
	r := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")

	if r.Actuals != 0 || r.Budget != 100 || r.Forecast != 100 || r.Prognosis != 100 {
		t.Fatalf("hours record = %+v", r)
	}
	if r.Balance != 0 || r.BalancePercentage != 100 {
		t.Fatalf("balance = %v (%v%%), want 0 (100%%)", r.Balance, r.BalancePercentage)
	}
	if r.RestPercentage != 0 {
		t.Fatalf("rest_percentage = %v, want 0 without actuals", r.RestPercentage)
	}
	if r.Inkrement != "Detailing" || r.ID != 11 {
		t.Fatalf("record identity = %d %q", r.ID, r.Inkrement)
	}
}

func TestAssembleWithMatchingTimesheet(t *testing.T) {
	in := singleSubInput()
	in.Timesheets = []TimesheetRow{{
		Date:            day(2025, 1, 15),
		ProjectCode:     "P1",
		RoleDescription: "  engineering detailing det ",
		Hours:           d("60"),
	}}
	res := Assemble(in)

	h := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	if h.Actuals != 60 || h.Forecast != 40 || h.Prognosis != 100 || h.Balance != 0 {
		t.Fatalf("hours record = %+v", h)
	}
	if h.Rest != h.Forecast {
		t.Fatalf("rest = %v, want forecast %v", h.Rest, h.Forecast)
	}
	c := costRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	if c.Actuals != 6000 || c.Forecast != 4000 || c.Prognosis != 10000 {
		t.Fatalf("cost record = %+v", c)
	}
	if got := res.Totals.LaborActualCost; !got.Equal(d("6000")) {
		t.Fatalf("labor actual cost = %s", got)
	}
	if res.FirstSnapshot {
		t.Fatalf("snapshot with actuals flagged as first")
	}
	if res.Diagnostics.Timesheets != (MatchStats{Rows: 1, Matched: 1}) {
		t.Fatalf("timesheet stats = %+v", res.Diagnostics.Timesheets)
	}
}

func TestForecastNeverNegative(t *testing.T) {
	in := singleSubInput()
	in.Timesheets = []TimesheetRow{{Date: day(2025, 1, 2), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("130")}}
	res := Assemble(in)

	h := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	if h.Forecast != 0 {
		t.Fatalf("forecast = %v, want 0 when actual exceeds budget", h.Forecast)
	}
	if h.Prognosis != 130 || h.Balance != -30 {
		t.Fatalf("prognosis/balance = %v/%v", h.Prognosis, h.Balance)
	}
	if h.RestPercentage != 100 {
		t.Fatalf("rest_percentage = %v, want 100", h.RestPercentage)
	}
}

func TestOverrideForecastIgnoresActuals(t *testing.T) {
	in := singleSubInput()
	sub := &in.Departments[0].SubDepartments[0]
	sub.ForecastOverride = true
	sub.ForecastHours = d("25")
	sub.ForecastCost = d("2500")

	for _, hours := range []string{"0", "10", "90", "400"} {
		in.Timesheets = []TimesheetRow{{Date: day(2025, 1, 3), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d(hours)}}
		res := Assemble(in)
		h := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
		c := costRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
		if h.Forecast != 25 || c.Forecast != 2500 {
			t.Fatalf("actual %s h: forecast = %v h / %v, want override", hours, h.Forecast, c.Forecast)
		}
		want := d(hours).Add(d("25")).InexactFloat64()
		if h.Prognosis != want {
			t.Fatalf("actual %s h: prognosis = %v, want %v", hours, h.Prognosis, want)
		}
	}
}

func TestFirstSnapshotUsesPlan(t *testing.T) {
	res := Assemble(singleSubInput())
	if !res.FirstSnapshot {
		t.Fatalf("expected first snapshot")
	}
	tot := res.Totals
	if !tot.TotalActualCost.IsZero() {
		t.Fatalf("total actual = %s", tot.TotalActualCost)
	}
	if !tot.TotalBudgetCost.Equal(d("14000")) {
		t.Fatalf("total budget = %s, want actual budget 14000", tot.TotalBudgetCost)
	}
	if !tot.SumPrognosis.Equal(d("15000")) || !tot.TotalPrognosisCost.Equal(d("15000")) || !tot.TotalForecastCost.Equal(d("15000")) {
		t.Fatalf("sum prognosis = %s, prognosis = %s, forecast = %s", tot.SumPrognosis, tot.TotalPrognosisCost, tot.TotalForecastCost)
	}
	if !tot.Margin.Equal(d("5000")) || !tot.Factor.Equal(d("1.25")) {
		t.Fatalf("margin/factor = %s/%s", tot.Margin, tot.Factor)
	}
	// rolled-up labor values are still reported
	if !tot.LaborBudgetCost.Equal(d("10000")) || !tot.LaborBudgetHours.Equal(d("100")) {
		t.Fatalf("labor budget = %s / %s h", tot.LaborBudgetCost, tot.LaborBudgetHours)
	}
}

func TestNormalSnapshotKPIs(t *testing.T) {
	in := singleSubInput()
	in.Timesheets = []TimesheetRow{{Date: day(2025, 1, 15), ProjectCode: "P1-A", RoleDescription: "Engineering Detailing DET", Hours: d("60")}}
	in.Catalog = []CostCategoryRef{{Code: "KTMA", MatCode: "KTMA"}}
	in.Categories = []CategoryNode{{ID: 5, Code: "KTMA", Name: "KTMA Mechanical parts", BaselineCost: d("3000"), BudgetCost: d("3000")}}
	in.PurchaseOrders = []PurchaseOrderRow{{ProjectCode: "P1", MatCode: "ktma", Value: d("1000")}}

	tot := Assemble(in).Totals
	// labor prognosis 10000 + material prognosis 3000 + eff 500 + ter 500
	if !tot.SumPrognosis.Equal(d("14000")) {
		t.Fatalf("sum prognosis = %s", tot.SumPrognosis)
	}
	if !tot.Margin.Equal(d("6000")) {
		t.Fatalf("margin = %s", tot.Margin)
	}
	if want := d("20000").Div(d("14000")); !tot.Factor.Equal(want) {
		t.Fatalf("factor = %s, want %s", tot.Factor, want)
	}
	if !tot.TotalActualCost.Equal(d("7000")) || !tot.TotalBudgetCost.Equal(d("13000")) || !tot.TotalForecastCost.Equal(d("6000")) {
		t.Fatalf("totals = %+v", tot)
	}
	if !tot.TotalPrognosisCost.Equal(tot.SumPrognosis) {
		t.Fatalf("total prognosis %s != sum prognosis %s", tot.TotalPrognosisCost, tot.SumPrognosis)
	}
}

func TestRKActualOverrideWinsOverPurchaseOrders(t *testing.T) {
	in := singleSubInput()
	in.Catalog = []CostCategoryRef{{Code: "RK", MatCode: "RK"}, {Code: "KTMA", MatCode: "KTMA"}}
	in.Categories = []CategoryNode{{
		ID: 9, Code: "RK", Name: "RK Travel costs", BudgetCost: d("8000"), BaselineCost: d("8000"),
		ActualOverride: true, ManualActual: d("5000"),
	}}
	in.PurchaseOrders = []PurchaseOrderRow{
		{ProjectCode: "P1", MatCode: "RK", Value: d("9000")},
		{ProjectCode: "P1", MatCode: " rk", Value: d("999")},
	}

	res := Assemble(in)
	if got := categoryRecord(t, res.Document, "RK").Actuals; got != 5000 {
		t.Fatalf("RK actual = %v, want 5000", got)
	}

	in.Categories[0].ActualOverride = false
	res = Assemble(in)
	if got := categoryRecord(t, res.Document, "RK").Actuals; got != 9999 {
		t.Fatalf("RK actual without override = %v, want 9999", got)
	}
}

func TestActualOverrideOnlyAppliesToRK(t *testing.T) {
	in := singleSubInput()
	in.Catalog = []CostCategoryRef{{Code: "KTMA", MatCode: "KTMA"}}
	in.Categories = []CategoryNode{{ID: 4, Code: "KTMA", Name: "KTMA", BudgetCost: d("100"), ActualOverride: true, ManualActual: d("1")}}
	in.PurchaseOrders = []PurchaseOrderRow{{ProjectCode: "P1", MatCode: "KTMA", Value: d("70")}}

	if got := categoryRecord(t, Assemble(in).Document, "KTMA").Actuals; got != 70 {
		t.Fatalf("KTMA actual = %v, want PO total 70", got)
	}
}

func TestCategoriesWithoutProjectBudgetAreSkipped(t *testing.T) {
	in := singleSubInput()
	in.Catalog = []CostCategoryRef{{Code: "KTMA", MatCode: "KTMA"}, {Code: "SOKO", MatCode: "SOKO"}}
	in.Categories = []CategoryNode{{ID: 1, Code: "KTMA", Name: "KTMA", BudgetCost: d("100")}}
	in.PurchaseOrders = []PurchaseOrderRow{
		{ProjectCode: "P1", MatCode: "SOKO", Value: d("50")},
		{ProjectCode: "P1", MatCode: "UNKNOWN", Value: d("50")},
		{ProjectCode: "P2", MatCode: "KTMA", Value: d("50")},
	}
	res := Assemble(in)
	if len(res.Document.CostToGo) != 1 {
		t.Fatalf("cost to go has %d entries, want 1", len(res.Document.CostToGo))
	}
	// SOKO matched the catalog but the project has no budget line for it
	if res.Diagnostics.PurchaseOrders != (MatchStats{Rows: 2, Matched: 1, Unmatched: 1}) {
		t.Fatalf("po stats = %+v", res.Diagnostics.PurchaseOrders)
	}
	if !res.Totals.MaterialActualCost.IsZero() {
		t.Fatalf("material actual = %s", res.Totals.MaterialActualCost)
	}
}

func TestTimesheetScopeAndUnmatchedRows(t *testing.T) {
	in := singleSubInput()
	in.Timesheets = []TimesheetRow{
		{Date: day(2025, 1, 31), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("2")},
		{Date: time.Date(2025, 1, 31, 18, 30, 0, 0, time.UTC), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("3")},
		{Date: day(2025, 2, 1), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("100")},
		{Date: day(2025, 1, 10), ProjectCode: "X-P1", RoleDescription: "Engineering Detailing DET", Hours: d("100")},
		{Date: day(2025, 1, 10), ProjectCode: "P1", RoleDescription: "Somebody Else", Hours: d("7")},
		{Date: day(2025, 1, 10), ProjectCode: "P1", RoleDescription: "", Hours: d("7")},
	}
	res := Assemble(in)
	if got := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1").Actuals; got != 5 {
		t.Fatalf("actual hours = %v, want 5", got)
	}
	if res.Diagnostics.Timesheets != (MatchStats{Rows: 4, Matched: 2, Unmatched: 2}) {
		t.Fatalf("timesheet stats = %+v", res.Diagnostics.Timesheets)
	}
}

func TestDuplicateRoleGoesToLowestID(t *testing.T) {
	in := singleSubInput()
	dept := &in.Departments[0]
	dept.SubDepartments = append(dept.SubDepartments, SubDepartmentNode{
		ID: 3, Code: "S0", RoleDescription: "ENGINEERING DETAILING DET", BudgetCost: d("500"),
	})
	in.Timesheets = []TimesheetRow{{Date: day(2025, 1, 3), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("4")}}

	res := Assemble(in)
	if got := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S0").Actuals; got != 4 {
		t.Fatalf("S0 (id 3) actual = %v, want 4", got)
	}
	if got := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1").Actuals; got != 0 {
		t.Fatalf("S1 (id 11) actual = %v, want 0", got)
	}
}

func TestHoursAndCostUseDepartmentRateAndExchangeRate(t *testing.T) {
	in := singleSubInput()
	in.ExchangeRate = d("2")
	in.Timesheets = []TimesheetRow{{Date: day(2025, 1, 3), ProjectCode: "P1", RoleDescription: "Engineering Detailing DET", Hours: d("10")}}

	res := Assemble(in)
	h := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	c := costRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	if h.Budget != 50 {
		t.Fatalf("budget hours = %v, want 10000/(100*2)", h.Budget)
	}
	if c.Actuals != 2000 {
		t.Fatalf("actual cost = %v, want 10*100*2", c.Actuals)
	}
}

func TestZeroRateGivesZeroHours(t *testing.T) {
	in := singleSubInput()
	in.Departments[0].HourlyRate = decimal.Zero
	res := Assemble(in)
	h := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1")
	if h.Budget != 0 || h.BalancePercentage != 0 {
		t.Fatalf("hours record with zero rate = %+v", h)
	}
}

func TestLastMonthActualsComeFromPreviousSnapshot(t *testing.T) {
	in := singleSubInput()
	in.Catalog = []CostCategoryRef{{Code: "KTMA", MatCode: "KTMA"}}
	in.Categories = []CategoryNode{{ID: 5, Code: "KTMA", Name: "KTMA", BudgetCost: d("3000")}}
	in.Previous = &Document{
		Cost: []Group{{Department: "MECHANICAL_DESIGN", Entries: []Entry{{Code: "S1", Record: Record{Actuals: 2500}}}}},
		CostToGo: []Entry{{Code: "KTMA", Record: Record{Actuals: 700}}},
	}
	res := Assemble(in)
	if got := costRecord(t, res.Document, "MECHANICAL_DESIGN", "S1").LastMonthActuals; got != 2500 {
		t.Fatalf("last month cost = %v", got)
	}
	if got := hoursRecord(t, res.Document, "MECHANICAL_DESIGN", "S1").LastMonthActuals; got != 25 {
		t.Fatalf("last month hours = %v, want 2500/100", got)
	}
	if got := categoryRecord(t, res.Document, "KTMA").LastMonthActuals; got != 700 {
		t.Fatalf("last month material = %v", got)
	}

	in.Previous = nil
	res = Assemble(in)
	if got := costRecord(t, res.Document, "MECHANICAL_DESIGN", "S1").LastMonthActuals; got != 0 {
		t.Fatalf("last month without previous snapshot = %v", got)
	}
}

func TestWeeklySnapshotStillLooksBackOneMonth(t *testing.T) {
	cases := []struct {
		snapshot time.Time
		want     time.Time
	}{
		{day(2025, 3, 14), day(2025, 2, 28)},
		{day(2025, 3, 7), day(2025, 2, 28)},
		{day(2024, 3, 31), day(2024, 2, 29)},
		{day(2025, 1, 1), day(2024, 12, 31)},
	}
	for _, tc := range cases {
		if got := PreviousMonthEnd(tc.snapshot); !got.Equal(tc.want) {
			t.Errorf("PreviousMonthEnd(%s) = %s, want %s", tc.snapshot.Format("2006-01-02"), got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
		}
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	in := singleSubInput()
	in.Departments = append(in.Departments, DepartmentNode{
		ID: 2, Name: "ELECTRICAL_DESIGN", HourlyRate: d("1500"),
		SubDepartments: []SubDepartmentNode{
			{ID: 21, Code: "KEL", RoleDescription: "Engineering Electrical Design KEL", BudgetCost: d("33333.33")},
			{ID: 20, Code: "PEC", RoleDescription: "Electrics coordinator-ELK ", BudgetCost: d("1000")},
		},
	})
	in.Catalog = []CostCategoryRef{{Code: "KTMA", MatCode: "KTMA"}, {Code: "RK", MatCode: "RK"}}
	in.Categories = []CategoryNode{
		{ID: 2, Code: "RK", Name: "RK Travel costs", BudgetCost: d("100")},
		{ID: 1, Code: "KTMA", Name: "KTMA Mechanical parts", BudgetCost: d("1000")},
	}
	in.Timesheets = []TimesheetRow{
		{Date: day(2025, 1, 3), ProjectCode: "P1", RoleDescription: "Engineering Electrical Design KEL", Hours: d("7.25")},
		{Date: day(2025, 1, 4), ProjectCode: "P1", RoleDescription: "Electrics coordinator-ELK", Hours: d("1.5")},
	}
	in.PurchaseOrders = []PurchaseOrderRow{{ProjectCode: "P1", MatCode: "KTMA", Value: d("123.45")}}

	first, err := json.Marshal(Assemble(in).Document)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// reversed input order must not matter
	in.Departments[0], in.Departments[1] = in.Departments[1], in.Departments[0]
	in.Categories[0], in.Categories[1] = in.Categories[1], in.Categories[0]
	second, err := json.Marshal(Assemble(in).Document)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("documents differ:\n%s\n%s", first, second)
	}

	res := Assemble(in)
	if res.Document.Hours[0].Department != "ELECTRICAL_DESIGN" || res.Document.Hours[0].Entries[0].Code != "KEL" {
		t.Fatalf("unexpected order: %+v", res.Document.Hours)
	}
	if res.Document.CostToGo[0].Code != "KTMA" {
		t.Fatalf("unexpected category order: %+v", res.Document.CostToGo)
	}
}
