package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// setupDatabase starts MySQL and Redis in docker, connects the config globals and migrates.
func setupDatabase(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "psr_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return utils.SetUsernameInContext(context.Background(), "tester@local")
}

func createTestProject(t *testing.T, ctx context.Context, coNo string) *models.Project {
	t.Helper()
	project, err := models.CreateProject(ctx, &models.NewProject{
		CoNo:                  coNo,
		ProjectName:           "Paint shop " + coNo,
		ProjectManager:        "pm",
		ProjectManagerEmail:   "pm@example.com",
		SalesPerson:           "sp",
		SalesPersonEmail:      "sp@example.com",
		Currency:              models.CurrencyINR,
		SalesValueForeignCurr: d("1000000"),
		EbitPercentage:        d("10"),
		SgnaPercentage:        d("5"),
		EffPercentage:         d("2"),
		TerPercentage:         d("3"),
		SubDepartmentBudgets:  map[string]decimal.Decimal{"PM": d("200000")},
		CostCategoryBudgets:   map[string]decimal.Decimal{"RK": d("20000"), "KTFT": d("50000")},
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return project
}

func TestSnapshotLifecycle(t *testing.T) {
	ctx := setupDatabase(t)
	project := createTestProject(t, ctx, "CO-100")

	latest, err := models.GetLatestSnapshot(ctx, project.ID)
	if err != nil {
		t.Fatalf("first snapshot missing: %v", err)
	}
	if !latest.TotalBudgetCost.Equal(project.ActualBudget) || !latest.TotalActualCost.IsZero() {
		t.Fatalf("first snapshot budget/actual = %s/%s, want %s/0", latest.TotalBudgetCost, latest.TotalActualCost, project.ActualBudget)
	}

	if _, err := models.CreateProject(ctx, &models.NewProject{
		CoNo: "CO-100", ProjectName: "dup", ProjectManager: "pm", ProjectManagerEmail: "pm@example.com",
		SalesPerson: "sp", SalesPersonEmail: "sp@example.com",
	}); !utils.IsValidationError(err) {
		t.Fatalf("duplicate co_no: err = %v", err)
	}

	entries := []models.TimesheetEntry{
		{Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), EmpCd: "E1", RoleDescrptn: "Project Management PRO", CoNo: "CO-100", Hours: d("60")},
		{Date: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), EmpCd: "E2", RoleDescrptn: "Nobody", CoNo: "CO-100-A", Hours: d("5")},
		{Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), EmpCd: "E1", RoleDescrptn: "Project Management PRO", CoNo: "CO-100", Hours: d("10")},
		{Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), EmpCd: "E1", RoleDescrptn: "Project Management PRO", CoNo: "CO-999", Hours: d("99")},
	}
	written, err := models.InsertTimesheetEntries(ctx, entries)
	if err != nil || written != 4 {
		t.Fatalf("InsertTimesheetEntries = %d, %v", written, err)
	}
	written, err = models.InsertTimesheetEntries(ctx, entries[:1])
	if err != nil || written != 0 {
		t.Fatalf("re-import wrote %d rows, err %v", written, err)
	}
	if _, err := models.UpsertPOData(ctx, []models.POData{
		{CoNo: "CO-100", PoNo: "PO1", SrNo: 1, MatCode: "KTFT", PoValue: d("1200")},
		{CoNo: "CO-100", PoNo: "PO1", SrNo: 2, MatCode: "RK", PoValue: d("9999")},
	}); err != nil {
		t.Fatalf("UpsertPOData: %v", err)
	}

	jan := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	res, err := models.GenerateSnapshotByCoNo(ctx, "CO-100", jan, models.SnapshotFrequencyMonthly, "tester@local")
	if err != nil {
		t.Fatalf("GenerateSnapshot: %v", err)
	}
	s := res.Snapshot
	if !s.LaborActualHours.Equal(d("60")) || !s.LaborActualCost.Equal(d("120000")) {
		t.Fatalf("labor actual = %s h / %s", s.LaborActualHours, s.LaborActualCost)
	}
	if !s.LaborForecastHours.Equal(d("40")) || !s.LaborPrognosisHours.Equal(d("100")) {
		t.Fatalf("labor forecast/prognosis hours = %s/%s", s.LaborForecastHours, s.LaborPrognosisHours)
	}
	if res.Diagnostics.Timesheets.Unmatched != 1 {
		t.Fatalf("unmatched timesheets = %d, want 1", res.Diagnostics.Timesheets.Unmatched)
	}
	if got, _ := s.Data.MaterialActuals("RK"); got != 9999 {
		t.Fatalf("RK actual from PO = %v", got)
	}

	again, err := models.GenerateSnapshot(ctx, project.ID, jan, models.SnapshotFrequencyMonthly, "tester@local")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if again.Snapshot.ID != s.ID || !again.Snapshot.TotalPrognosisCost.Equal(s.TotalPrognosisCost) {
		t.Fatalf("regeneration changed the row: id %d/%d prognosis %s/%s",
			again.Snapshot.ID, s.ID, again.Snapshot.TotalPrognosisCost, s.TotalPrognosisCost)
	}

	// the stored document comes back in the order it was assembled
	reloaded, err := models.GetSnapshot(ctx, project.ID, jan)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	for _, groups := range [][]psr.Group{reloaded.Data.Hours, reloaded.Data.Cost} {
		if len(groups) < 2 {
			t.Fatalf("reloaded groups = %d, want every department", len(groups))
		}
		for i := 1; i < len(groups); i++ {
			if groups[i-1].Department >= groups[i].Department {
				t.Fatalf("departments out of order after reload: %s before %s", groups[i-1].Department, groups[i].Department)
			}
		}
	}
	for i := 1; i < len(reloaded.Data.CostToGo); i++ {
		if reloaded.Data.CostToGo[i-1].Code >= reloaded.Data.CostToGo[i].Code {
			t.Fatalf("categories out of order after reload: %s before %s", reloaded.Data.CostToGo[i-1].Code, reloaded.Data.CostToGo[i].Code)
		}
	}

	// weekly snapshot in March compares against the end of February
	feb := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if _, err := models.GenerateSnapshot(ctx, project.ID, feb, models.SnapshotFrequencyMonthly, "tester@local"); err != nil {
		t.Fatalf("february: %v", err)
	}
	mar, err := models.GenerateSnapshot(ctx, project.ID, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), models.SnapshotFrequencyWeekly, "tester@local")
	if err != nil {
		t.Fatalf("march: %v", err)
	}
	for _, g := range mar.Snapshot.Data.Cost {
		for _, e := range g.Entries {
			if e.Code == "PM" && e.Record.LastMonthActuals != 140000 {
				t.Fatalf("PM last month actuals = %v, want 140000", e.Record.LastMonthActuals)
			}
		}
	}

	prev, err := models.GetPreviousMonthSnapshot(ctx, project.ID, mar.Snapshot.SnapshotDate)
	if err != nil || !prev.SnapshotDate.Equal(feb) {
		t.Fatalf("previous month snapshot = %+v, %v", prev, err)
	}
	all, err := models.ListSnapshots(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("snapshots = %d, want at least 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].SnapshotDate.Before(all[i].SnapshotDate) {
			t.Fatalf("snapshots not ordered by date at %d", i)
		}
	}
	for _, row := range all {
		if len(row.Data.Hours) != 0 || row.TotalPrognosisCost.IsZero() {
			t.Fatalf("listed snapshot %s should carry totals without a document", row.SnapshotDate.Format("2006-01-02"))
		}
	}

	history, err := models.GetTimesheetHistory(ctx, "CO-100")
	if err != nil {
		t.Fatalf("GetTimesheetHistory: %v", err)
	}
	if len(history.Hours) != len(all) {
		t.Fatalf("timesheet history rows = %d, want %d", len(history.Hours), len(all))
	}
}

func TestOverrideMutations(t *testing.T) {
	ctx := setupDatabase(t)
	project := createTestProject(t, ctx, "CO-200")
	detail, err := models.GetProjectDetail(ctx, "CO-200")
	if err != nil {
		t.Fatalf("GetProjectDetail: %v", err)
	}
	if !detail.SubDepartmentBudgets["PM"].Equal(d("200000")) {
		t.Fatalf("PM budget = %s", detail.SubDepartmentBudgets["PM"])
	}

	db := config.GetDB()
	var pm models.SubDepartment
	if err := db.Joins("JOIN departments ON departments.id = sub_departments.department_id").
		Where("departments.project_id = ? AND sub_departments.code = ?", project.ID, "PM").
		First(&pm).Error; err != nil {
		t.Fatalf("load PM: %v", err)
	}

	budget, err := models.UpdateSubDepartmentBudget(ctx, pm.ID, &models.NewBudgetHours{BudgetHours: dp("150"), Note: "scope change"})
	if err != nil {
		t.Fatalf("UpdateSubDepartmentBudget: %v", err)
	}
	if !budget.SubDepartment.BudgetCost.Equal(d("300000")) || !budget.SubDepartment.BudgetHours.Equal(d("150")) {
		t.Fatalf("budget = %s / %s h", budget.SubDepartment.BudgetCost, budget.SubDepartment.BudgetHours)
	}
	if budget.SnapshotRegenerated == nil {
		t.Fatalf("latest snapshot not regenerated")
	}
	if !budget.Adjustment.PreviousBudgetCost.Equal(d("200000")) {
		t.Fatalf("previous budget cost = %s", budget.Adjustment.PreviousBudgetCost)
	}

	if _, err := models.UpdateSubDepartmentBudget(ctx, pm.ID, &models.NewBudgetHours{BudgetHours: dp("-1"), Note: "x"}); !utils.IsValidationError(err) {
		t.Fatalf("negative budget: err = %v", err)
	}
	var count int64
	db.Model(&models.SubDepartmentBudgetAdjustment{}).Where("sub_department_id = ?", pm.ID).Count(&count)
	if count != 1 {
		t.Fatalf("adjustments = %d, want 1", count)
	}

	forecast, err := models.OverrideSubDepartmentForecast(ctx, pm.ID, &models.NewForecastHoursOverride{
		Note:  "late commissioning",
		Lines: []models.HoursLine{{Description: "a", Hours: dp("20")}, {Description: "b", Hours: dp("5")}},
	})
	if err != nil {
		t.Fatalf("OverrideSubDepartmentForecast: %v", err)
	}
	if !forecast.SubDepartment.ForecastCost.Equal(d("50000")) {
		t.Fatalf("forecast cost = %s, want 50000", forecast.SubDepartment.ForecastCost)
	}
	active, err := models.GetSubDepartmentForecastOverride(ctx, pm.ID)
	if err != nil || !active.ForecastOverride || active.Adjustment == nil || len(active.Adjustment.Lines) != 2 {
		t.Fatalf("GetSubDepartmentForecastOverride = %+v, %v", active, err)
	}

	var rk, ktft models.ProjectCostCategory
	db.Joins("CostCategory").Where("project_id = ? AND CostCategory.code = ?", project.ID, "RK").First(&rk)
	db.Joins("CostCategory").Where("project_id = ? AND CostCategory.code = ?", project.ID, "KTFT").First(&ktft)

	if _, err := models.OverrideRKActual(ctx, ktft.ID, &models.NewAmountOverride{
		Note: "x", Lines: []models.AmountLine{{Amount: dp("1")}},
	}); !utils.IsValidationError(err) {
		t.Fatalf("RK override on KTFT: err = %v", err)
	}
	db.Model(&models.RKActualAdjustment{}).Where("project_cost_category_id = ?", ktft.ID).Count(&count)
	if count != 0 {
		t.Fatalf("rejected RK override wrote %d adjustments", count)
	}
	db.Model(&models.RKActualAdjustmentLine{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected RK override wrote %d lines", count)
	}

	ktftBudget, err := models.UpdateProjectCostCategoryBudget(ctx, ktft.ID, &models.NewBudgetCost{BudgetCost: dp("60000"), Note: "extra tooling"})
	if err != nil {
		t.Fatalf("UpdateProjectCostCategoryBudget: %v", err)
	}
	if !ktftBudget.Adjustment.PreviousBudgetCost.Equal(d("50000")) || !ktftBudget.ProjectCostCategory.BudgetCost.Equal(d("60000")) {
		t.Fatalf("KTFT budget %s -> %s", ktftBudget.Adjustment.PreviousBudgetCost, ktftBudget.ProjectCostCategory.BudgetCost)
	}
	if _, err := models.OverrideProjectCostCategoryForecast(ctx, ktft.ID, &models.NewAmountOverride{
		Note:  "supplier quote",
		Lines: []models.AmountLine{{Description: "frames", Amount: dp("30000")}, {Description: "freight", Amount: dp("10000")}},
	}); err != nil {
		t.Fatalf("OverrideProjectCostCategoryForecast: %v", err)
	}
	ktftOverride, err := models.GetProjectCostCategoryForecastOverride(ctx, ktft.ID)
	if err != nil || !ktftOverride.ForecastOverride || ktftOverride.Adjustment == nil || len(ktftOverride.Adjustment.Lines) != 2 {
		t.Fatalf("GetProjectCostCategoryForecastOverride = %+v, %v", ktftOverride, err)
	}

	// new purchase orders move the actuals but not an overridden forecast
	if _, err := models.UpsertPOData(ctx, []models.POData{{CoNo: "CO-200", PoNo: "P7", SrNo: 1, MatCode: "KTFT", PoValue: d("7000")}}); err != nil {
		t.Fatalf("UpsertPOData: %v", err)
	}
	current, err := models.GetLatestSnapshot(ctx, project.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	regen, err := models.GenerateSnapshot(ctx, project.ID, current.SnapshotDate, current.Frequency, "tester@local")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	record, ok := costToGoRecord(regen.Snapshot.Data, "KTFT")
	if !ok {
		t.Fatalf("KTFT missing from cost to go")
	}
	if record.Actuals != 7000 || record.Forecast != 40000 || record.Budget != 60000 || record.BaselineBudget != 50000 {
		t.Fatalf("KTFT record = %+v", record)
	}

	// a failure after the first write leaves nothing behind
	const failAdjustment = "test:fail_budget_adjustment"
	if err := db.Callback().Create().Before("gorm:create").Register(failAdjustment, func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Name == "ProjectCostCategoryBudgetAdjustment" {
			tx.AddError(errors.New("adjustment insert failed"))
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}
	_, err = models.UpdateProjectCostCategoryBudget(ctx, ktft.ID, &models.NewBudgetCost{BudgetCost: dp("99999"), Note: "doomed"})
	if rmErr := db.Callback().Create().Remove(failAdjustment); rmErr != nil {
		t.Fatalf("remove callback: %v", rmErr)
	}
	if err == nil {
		t.Fatalf("failing adjustment insert did not fail the mutation")
	}
	var reloadedKTFT models.ProjectCostCategory
	if err := db.First(&reloadedKTFT, ktft.ID).Error; err != nil {
		t.Fatalf("reload KTFT: %v", err)
	}
	if !reloadedKTFT.BudgetCost.Equal(d("60000")) {
		t.Fatalf("rolled back budget = %s, want 60000", reloadedKTFT.BudgetCost)
	}
	db.Model(&models.ProjectCostCategoryBudgetAdjustment{}).Where("project_cost_category_id = ?", ktft.ID).Count(&count)
	if count != 1 {
		t.Fatalf("KTFT budget adjustments = %d, want 1", count)
	}

	if _, err := models.UpsertPOData(ctx, []models.POData{{CoNo: "CO-200", PoNo: "P9", SrNo: 1, MatCode: "RK", PoValue: d("9999")}}); err != nil {
		t.Fatalf("UpsertPOData: %v", err)
	}
	for _, amount := range []string{"3000", "5000"} {
		if _, err := models.OverrideRKActual(ctx, rk.ID, &models.NewAmountOverride{
			Note: "travel", Lines: []models.AmountLine{{Description: "trip", Amount: dp(amount)}},
		}); err != nil {
			t.Fatalf("OverrideRKActual %s: %v", amount, err)
		}
	}
	rkOverride, err := models.GetRKActualOverride(ctx, rk.ID)
	if err != nil {
		t.Fatalf("GetRKActualOverride: %v", err)
	}
	if !rkOverride.Total.Equal(d("5000")) || !rkOverride.Adjustment.PreviousTotal.Equal(d("3000")) {
		t.Fatalf("rk total/previous = %s/%s", rkOverride.Total, rkOverride.Adjustment.PreviousTotal)
	}

	latest, err := models.GetLatestSnapshot(ctx, project.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got, _ := latest.Data.MaterialActuals("RK"); got != 5000 {
		t.Fatalf("RK actual = %v, want 5000", got)
	}

	if _, err := models.UpdateSubDepartmentBudget(ctx, 999999, &models.NewBudgetHours{BudgetHours: dp("1"), Note: "x"}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown sub-department: err = %v", err)
	}

	// baselines never move after creation
	var pmAfter models.SubDepartment
	if err := db.First(&pmAfter, pm.ID).Error; err != nil {
		t.Fatalf("reload PM: %v", err)
	}
	if !pmAfter.BaselineBudgetHours.Equal(pm.BaselineBudgetHours) || !pmAfter.BaselineBudgetCost.Equal(pm.BaselineBudgetCost) {
		t.Fatalf("PM baseline %s h / %s, want %s h / %s",
			pmAfter.BaselineBudgetHours, pmAfter.BaselineBudgetCost, pm.BaselineBudgetHours, pm.BaselineBudgetCost)
	}
	if !pm.BaselineBudgetCost.Equal(d("200000")) {
		t.Fatalf("PM baseline cost at creation = %s", pm.BaselineBudgetCost)
	}
	for _, pcc := range []models.ProjectCostCategory{rk, ktft} {
		var after models.ProjectCostCategory
		if err := db.First(&after, pcc.ID).Error; err != nil {
			t.Fatalf("reload category %d: %v", pcc.ID, err)
		}
		if !after.BaselineBudgetCost.Equal(pcc.BaselineBudgetCost) {
			t.Fatalf("category %d baseline = %s, want %s", pcc.ID, after.BaselineBudgetCost, pcc.BaselineBudgetCost)
		}
	}
	if !ktft.BaselineBudgetCost.Equal(d("50000")) {
		t.Fatalf("KTFT baseline at creation = %s", ktft.BaselineBudgetCost)
	}
}

func costToGoRecord(doc psr.Document, code string) (psr.Record, bool) {
	for _, e := range doc.CostToGo {
		if e.Code == code {
			return e.Record, true
		}
	}
	return psr.Record{}, false
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("psr-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun("run", "-d", "--name", name, "-p", "127.0.0.1:0:6379", "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("psr-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=psr_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
