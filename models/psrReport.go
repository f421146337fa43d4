package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/shopspring/decimal"
)

const (
	landingCacheKey = "psr:landing"
	landingCacheTTL = 10 * time.Minute
)

// invalidateReportCache drops cross-project aggregates after any snapshot write.
func invalidateReportCache() {
	if err := config.RemoveRedisKey(landingCacheKey); err != nil {
		config.LogError(config.GetLogger(), "PSRReport", "invalidateReportCache", "remove key", landingCacheKey, err)
	}
}

// snapshotFor returns the snapshot at date, or the latest one when date is nil.
func snapshotFor(ctx context.Context, projectId int, date *time.Time) (*PSRSnapshot, error) {
	if date == nil {
		return GetLatestSnapshot(ctx, projectId)
	}
	return GetSnapshot(ctx, projectId, *date)
}

type LaborSection struct {
	Hours psr.Groups `json:"HOURS"`
	Cost  psr.Groups `json:"COST"`
}

type TimesheetSection struct {
	Project      string       `json:"project"`
	SnapshotDate MyDate       `json:"snapshot_date"`
	Timesheet    LaborSection `json:"timesheet"`
}

// GetTimesheetSection returns the labor rollup of a snapshot, rounded for display.
func GetTimesheetSection(ctx context.Context, coNo string, date *time.Time) (*TimesheetSection, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	s, err := snapshotFor(ctx, project.ID, date)
	if err != nil {
		return nil, err
	}
	return &TimesheetSection{
		Project:      project.CoNo,
		SnapshotDate: NewMyDate(s.SnapshotDate),
		Timesheet: LaborSection{
			Hours: psr.RoundForDisplay(s.Data.Hours),
			Cost:  psr.RoundForDisplay(s.Data.Cost),
		},
	}, nil
}

type MaterialSection struct {
	Cost psr.Entries `json:"COST"`
}

type CostToGoSection struct {
	Project      string          `json:"project"`
	SnapshotDate MyDate          `json:"snapshot_date"`
	CostToGo     MaterialSection `json:"cost_to_go"`
}

func GetCostToGoSection(ctx context.Context, coNo string, date *time.Time) (*CostToGoSection, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	s, err := snapshotFor(ctx, project.ID, date)
	if err != nil {
		return nil, err
	}
	return &CostToGoSection{
		Project:      project.CoNo,
		SnapshotDate: NewMyDate(s.SnapshotDate),
		CostToGo:     MaterialSection{Cost: s.Data.CostToGo},
	}, nil
}

type HoursHistoryRow struct {
	Month          string          `json:"month"`
	SnapshotDate   MyDate          `json:"snapshot_date"`
	ActualHours    decimal.Decimal `json:"actual_hours"`
	BudgetHours    decimal.Decimal `json:"budget_hours"`
	ForecastHours  decimal.Decimal `json:"forecast_hours"`
	PrognosisHours decimal.Decimal `json:"prognosis_hours"`
}

type CostHistoryRow struct {
	Month         string          `json:"month"`
	SnapshotDate  MyDate          `json:"snapshot_date"`
	ActualCost    decimal.Decimal `json:"actual_cost"`
	BudgetCost    decimal.Decimal `json:"budget_cost"`
	ForecastCost  decimal.Decimal `json:"forecast_cost"`
	PrognosisCost decimal.Decimal `json:"prognosis_cost"`
}

type TimesheetHistory struct {
	Project     string            `json:"project"`
	ProjectName string            `json:"project_name"`
	Hours       []HoursHistoryRow `json:"HOURS"`
	Cost        []CostHistoryRow  `json:"COST"`
}

func GetTimesheetHistory(ctx context.Context, coNo string) (*TimesheetHistory, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	snapshots, err := ListSnapshots(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	result := &TimesheetHistory{
		Project:     project.CoNo,
		ProjectName: project.ProjectName,
		Hours:       make([]HoursHistoryRow, 0, len(snapshots)),
		Cost:        make([]CostHistoryRow, 0, len(snapshots)),
	}
	for _, s := range snapshots {
		month := psr.MonthLabel(s.SnapshotDate)
		result.Hours = append(result.Hours, HoursHistoryRow{
			Month:          month,
			SnapshotDate:   NewMyDate(s.SnapshotDate),
			ActualHours:    s.LaborActualHours,
			BudgetHours:    s.LaborBudgetHours,
			ForecastHours:  s.LaborForecastHours,
			PrognosisHours: s.LaborPrognosisHours,
		})
		result.Cost = append(result.Cost, CostHistoryRow{
			Month:         month,
			SnapshotDate:  NewMyDate(s.SnapshotDate),
			ActualCost:    s.LaborActualCost,
			BudgetCost:    s.LaborBudgetCost,
			ForecastCost:  s.LaborForecastCost,
			PrognosisCost: s.LaborPrognosisCost,
		})
	}
	return result, nil
}

type CostToGoHistory struct {
	Project     string           `json:"project"`
	ProjectName string           `json:"project_name"`
	History     []CostHistoryRow `json:"cost_to_go_history"`
}

func GetCostToGoHistory(ctx context.Context, coNo string) (*CostToGoHistory, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	snapshots, err := ListSnapshots(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	result := &CostToGoHistory{
		Project:     project.CoNo,
		ProjectName: project.ProjectName,
		History:     make([]CostHistoryRow, 0, len(snapshots)),
	}
	for _, s := range snapshots {
		result.History = append(result.History, CostHistoryRow{
			Month:         psr.MonthLabel(s.SnapshotDate),
			SnapshotDate:  NewMyDate(s.SnapshotDate),
			ActualCost:    s.MaterialActualCost,
			BudgetCost:    s.MaterialBudgetCost,
			ForecastCost:  s.MaterialForecastCost,
			PrognosisCost: s.MaterialPrognosisCost,
		})
	}
	return result, nil
}

type LatestKPI struct {
	Project      string  `json:"project"`
	SnapshotDate MyDate  `json:"snapshot_date"`
	KPI          psr.KPI `json:"kpi"`
}

func GetLatestKPI(ctx context.Context, coNo string) (*LatestKPI, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	s, err := GetLatestSnapshot(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &LatestKPI{
		Project:      project.CoNo,
		SnapshotDate: NewMyDate(s.SnapshotDate),
		KPI:          s.KPI(project.SalesValue),
	}, nil
}

type DatedKPI struct {
	SnapshotDate MyDate  `json:"snapshot_date"`
	KPI          psr.KPI `json:"kpi"`
}

type KPIHistory struct {
	Project     string     `json:"project"`
	ProjectName string     `json:"project_name"`
	History     []DatedKPI `json:"history"`
}

func GetKPIHistory(ctx context.Context, coNo string) (*KPIHistory, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	snapshots, err := ListSnapshots(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	result := &KPIHistory{
		Project:     project.CoNo,
		ProjectName: project.ProjectName,
		History:     make([]DatedKPI, 0, len(snapshots)),
	}
	for _, s := range snapshots {
		result.History = append(result.History, DatedKPI{
			SnapshotDate: NewMyDate(s.SnapshotDate),
			KPI:          s.KPI(project.SalesValue),
		})
	}
	return result, nil
}

// latestSnapshotsByProject returns each project's newest snapshot, documents omitted.
func latestSnapshotsByProject(ctx context.Context) (map[int]*PSRSnapshot, error) {
	db := config.GetDB().WithContext(ctx)
	newest := db.Model(&PSRSnapshot{}).Select("project_id, MAX(snapshot_date)").Group("project_id")
	var rows []*PSRSnapshot
	if err := db.Omit("data").Where("(project_id, snapshot_date) IN (?)", newest).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[int]*PSRSnapshot, len(rows))
	for _, r := range rows {
		result[r.ProjectId] = r
	}
	return result, nil
}

// GetLandingData sums sales value over every project and the latest snapshot totals of
// projects that have one. Cached in redis until the next snapshot write.
func GetLandingData(ctx context.Context) (*psr.LandingSummary, error) {
	var cached psr.LandingSummary
	if ok, err := config.GetRedisObject(landingCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	projects, err := ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := latestSnapshotsByProject(ctx)
	if err != nil {
		return nil, err
	}
	input := make([]psr.ProjectLatest, 0, len(projects))
	for _, p := range projects {
		row := psr.ProjectLatest{SalesValue: p.SalesValue}
		if s, ok := latest[p.ID]; ok {
			kpi := s.KPI(p.SalesValue)
			row.Latest = &kpi
		}
		input = append(input, row)
	}
	summary := psr.SummarizeLanding(input)
	if err := config.SetRedisObject(landingCacheKey, summary, landingCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "PSRReport", "GetLandingData", "cache landing", nil, err)
	}
	return &summary, nil
}

type ProjectLatestKPI struct {
	ProjectId   int    `json:"project_id"`
	CoNo        string `json:"co_no"`
	ProjectName string `json:"project_name"`
	psr.KPI
}

type ProjectsLatestSnapshots struct {
	Count    int                `json:"count"`
	Projects []ProjectLatestKPI `json:"projects_latest_snapshots"`
}

// GetProjectsLatestSnapshots lists the latest KPI of every project that has a snapshot.
func GetProjectsLatestSnapshots(ctx context.Context) (*ProjectsLatestSnapshots, error) {
	projects, err := ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := latestSnapshotsByProject(ctx)
	if err != nil {
		return nil, err
	}
	result := &ProjectsLatestSnapshots{Projects: make([]ProjectLatestKPI, 0, len(latest))}
	for _, p := range projects {
		s, ok := latest[p.ID]
		if !ok {
			continue
		}
		result.Projects = append(result.Projects, ProjectLatestKPI{
			ProjectId:   p.ID,
			CoNo:        p.CoNo,
			ProjectName: p.ProjectName,
			KPI:         s.KPI(p.SalesValue),
		})
	}
	result.Count = len(result.Projects)
	return result, nil
}

type CumulativeKPIHistory struct {
	MonthsCount int              `json:"months_count"`
	History     []psr.MonthlyKPI `json:"cumulative_kpi_history"`
}

// GetCumulativeKPIHistory groups every snapshot of every project by calendar month.
func GetCumulativeKPIHistory(ctx context.Context) (*CumulativeKPIHistory, error) {
	projects, err := ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	salesValue := make(map[int]decimal.Decimal, len(projects))
	for _, p := range projects {
		salesValue[p.ID] = p.SalesValue
	}
	var snapshots []*PSRSnapshot
	if err := config.GetDB().WithContext(ctx).Omit("data").Order("snapshot_date").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	rows := make([]psr.DatedKPI, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, psr.DatedKPI{Date: s.SnapshotDate, KPI: s.KPI(salesValue[s.ProjectId])})
	}
	history := psr.CumulateMonthly(rows)
	return &CumulativeKPIHistory{MonthsCount: len(history), History: history}, nil
}
