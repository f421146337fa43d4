package psr

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStats counts the rows in scope of a project and how many found a node.
type MatchStats struct {
	Rows      int `json:"rows"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

type LaborActual struct {
	Hours decimal.Decimal
	Cost  decimal.Decimal
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type laborTarget struct {
	subID int
	rate  decimal.Decimal
}

// LaborMatcher maps timesheet role descriptions onto sub-departments of one project.
type LaborMatcher struct {
	byRole map[string]laborTarget
}

// NewLaborMatcher indexes sub-departments by normalized role description.
// On duplicate roles the lowest sub-department id wins; empty roles are never matched.
func NewLaborMatcher(departments []DepartmentNode, exchangeRate decimal.Decimal) *LaborMatcher {
	m := &LaborMatcher{byRole: make(map[string]laborTarget)}
	for _, dept := range departments {
		rate := Rate(dept.HourlyRate, exchangeRate)
		for _, sub := range dept.SubDepartments {
			key := normalizeKey(sub.RoleDescription)
			if key == "" {
				continue
			}
			if existing, ok := m.byRole[key]; ok && existing.subID < sub.ID {
				continue
			}
			m.byRole[key] = laborTarget{subID: sub.ID, rate: rate}
		}
	}
	return m
}

// Aggregate sums hours and cost per sub-department id over rows whose project code
// starts with projectCode and whose date is on or before asOf.
func (m *LaborMatcher) Aggregate(rows []TimesheetRow, projectCode string, asOf time.Time) (map[int]LaborActual, MatchStats) {
	actuals := make(map[int]LaborActual)
	var stats MatchStats
	cutoff := DateOnly(asOf)
	for _, row := range rows {
		if !strings.HasPrefix(row.ProjectCode, projectCode) || DateOnly(row.Date).After(cutoff) {
			continue
		}
		stats.Rows++
		target, ok := m.byRole[normalizeKey(row.RoleDescription)]
		if !ok {
			stats.Unmatched++
			continue
		}
		stats.Matched++
		a := actuals[target.subID]
		a.Hours = a.Hours.Add(row.Hours)
		a.Cost = a.Cost.Add(HoursToCost(row.Hours, target.rate))
		actuals[target.subID] = a
	}
	return actuals, stats
}

// MaterialMatcher maps PO material codes onto cost category codes.
type MaterialMatcher struct {
	byMatCode map[string]string
}

// NewMaterialMatcher indexes the catalog by normalized material code; on duplicates the
// lowest category code wins.
func NewMaterialMatcher(catalog []CostCategoryRef) *MaterialMatcher {
	refs := append([]CostCategoryRef(nil), catalog...)
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Code < refs[j].Code })
	m := &MaterialMatcher{byMatCode: make(map[string]string)}
	for _, ref := range refs {
		key := normalizeKey(ref.MatCode)
		if key == "" {
			continue
		}
		if _, ok := m.byMatCode[key]; ok {
			continue
		}
		m.byMatCode[key] = ref.Code
	}
	return m
}

// Aggregate sums PO values per category code. There is no date filter: a PO counts
// as committed spend as soon as it exists.
func (m *MaterialMatcher) Aggregate(rows []PurchaseOrderRow, projectCode string) (map[string]decimal.Decimal, MatchStats) {
	totals := make(map[string]decimal.Decimal)
	var stats MatchStats
	for _, row := range rows {
		if !strings.HasPrefix(row.ProjectCode, projectCode) {
			continue
		}
		stats.Rows++
		code, ok := m.byMatCode[normalizeKey(row.MatCode)]
		if !ok {
			stats.Unmatched++
			continue
		}
		stats.Matched++
		totals[code] = totals[code].Add(row.Value)
	}
	return totals, stats
}
