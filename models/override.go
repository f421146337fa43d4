package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Budget and override mutations. Each runs in one read-committed transaction that locks
// the project row, then the node row, writes the node and its audit record and finally
// regenerates the project's latest snapshot. Validation happens before anything is locked.

type SubDepartmentBudgetResult struct {
	SubDepartment       *SubDepartment                 `json:"sub_department"`
	Adjustment          *SubDepartmentBudgetAdjustment `json:"adjustment"`
	SnapshotRegenerated *MyDate                        `json:"snapshot_regenerated"`
}

type ProjectCostCategoryBudgetResult struct {
	ProjectCostCategory *ProjectCostCategory                 `json:"project_cost_category"`
	Adjustment          *ProjectCostCategoryBudgetAdjustment `json:"adjustment"`
	SnapshotRegenerated *MyDate                              `json:"snapshot_regenerated"`
}

type SubDepartmentForecastResult struct {
	SubDepartment       *SubDepartment      `json:"sub_department"`
	Adjustment          *ForecastAdjustment `json:"adjustment"`
	SnapshotRegenerated *MyDate             `json:"snapshot_regenerated"`
}

type ProjectCostCategoryForecastResult struct {
	ProjectCostCategory *ProjectCostCategory        `json:"project_cost_category"`
	Adjustment          *MaterialForecastAdjustment `json:"adjustment"`
	SnapshotRegenerated *MyDate                     `json:"snapshot_regenerated"`
}

type RKActualResult struct {
	ProjectCostCategory *ProjectCostCategory `json:"project_cost_category"`
	Adjustment          *RKActualAdjustment  `json:"adjustment"`
	SnapshotRegenerated *MyDate              `json:"snapshot_regenerated"`
}

func actorFromContext(ctx context.Context) (string, error) {
	actor, ok := utils.GetUsernameFromContext(ctx)
	if !ok || actor == "" {
		return "", errors.New("username is required")
	}
	return actor, nil
}

func subDepartmentProjectId(ctx context.Context, id int) (int, error) {
	var ids []int
	err := config.GetDB().WithContext(ctx).Table("sub_departments s").
		Joins("JOIN departments d ON d.id = s.department_id").
		Where("s.id = ?", id).
		Pluck("d.project_id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, utils.ErrorRecordNotFound
	}
	return ids[0], nil
}

func projectCostCategoryProjectId(ctx context.Context, id int) (int, error) {
	var ids []int
	err := config.GetDB().WithContext(ctx).Model(&ProjectCostCategory{}).
		Where("id = ?", id).Pluck("project_id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, utils.ErrorRecordNotFound
	}
	return ids[0], nil
}

// mutateProject runs fn with the project row locked and regenerates the latest snapshot
// in the same transaction. The report cache is dropped after commit.
func mutateProject(ctx context.Context, projectId int, actor string, fn func(tx *gorm.DB, project *Project) error) (*MyDate, error) {
	var regenerated *MyDate
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := utils.LockModel[Project](tx, projectId)
		if err != nil {
			return err
		}
		if err := fn(tx, project); err != nil {
			return err
		}
		regenerated, err = regenerateLatestSnapshot(ctx, tx, projectId, actor)
		return err
	}, readCommitted)
	if err != nil {
		return nil, err
	}
	invalidateReportCache()
	return regenerated, nil
}

func lockSubDepartment(tx *gorm.DB, id, projectId int) (*SubDepartment, *Department, error) {
	sub, err := utils.LockModel[SubDepartment](tx, id)
	if err != nil {
		return nil, nil, err
	}
	var dept Department
	if err := tx.First(&dept, sub.DepartmentId).Error; err != nil {
		return nil, nil, err
	}
	if dept.ProjectId != projectId {
		return nil, nil, utils.ErrorRecordNotFound
	}
	return sub, &dept, nil
}

func lockProjectCostCategory(tx *gorm.DB, id, projectId int) (*ProjectCostCategory, error) {
	var pcc ProjectCostCategory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("CostCategory").First(&pcc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if pcc.ProjectId != projectId {
		return nil, utils.ErrorRecordNotFound
	}
	return &pcc, nil
}

// UpdateSubDepartmentBudget sets the budget in hours. The stored primary value is the
// cost at the department's current rate; hours are re-derived from it.
func UpdateSubDepartmentBudget(ctx context.Context, id int, input *NewBudgetHours) (*SubDepartmentBudgetResult, error) {
	ctx, span := tracer.Start(ctx, "UpdateSubDepartmentBudget")
	defer span.End()
	span.SetAttributes(attribute.Int("psr.sub_department_id", id))

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	projectId, err := subDepartmentProjectId(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &SubDepartmentBudgetResult{}
	result.SnapshotRegenerated, err = mutateProject(ctx, projectId, actor, func(tx *gorm.DB, project *Project) error {
		sub, dept, err := lockSubDepartment(tx, id, projectId)
		if err != nil {
			return err
		}
		rate := dept.Rate(project.ExchangeRate)
		if rate.IsZero() {
			return utils.NewValidationError("budget_hours", "department hourly rate is zero, budget hours cannot be converted to cost")
		}
		adjustment := SubDepartmentBudgetAdjustment{
			SubDepartmentId:     sub.ID,
			AdjustedBy:          actor,
			Note:                input.Note,
			PreviousBudgetHours: sub.BudgetHours,
			PreviousBudgetCost:  sub.BudgetCost,
		}
		sub.BudgetCost = psr.HoursToCost(*input.BudgetHours, rate).Round(moneyScale)
		sub.SyncBudget(rate)
		if err := tx.Model(sub).UpdateColumns(map[string]interface{}{
			"budget_cost":   sub.BudgetCost,
			"budget_hours":  sub.BudgetHours,
			"forecast_cost": sub.ForecastCost,
			"updated_at":    time.Now(),
		}).Error; err != nil {
			return err
		}
		if err := refreshDepartmentTotals(tx, dept.ID); err != nil {
			return err
		}
		adjustment.NewBudgetHours = sub.BudgetHours
		adjustment.NewBudgetCost = sub.BudgetCost
		if err := tx.Create(&adjustment).Error; err != nil {
			return err
		}
		result.SubDepartment = sub
		result.Adjustment = &adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func UpdateProjectCostCategoryBudget(ctx context.Context, id int, input *NewBudgetCost) (*ProjectCostCategoryBudgetResult, error) {
	ctx, span := tracer.Start(ctx, "UpdateProjectCostCategoryBudget")
	defer span.End()
	span.SetAttributes(attribute.Int("psr.project_cost_category_id", id))

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	projectId, err := projectCostCategoryProjectId(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &ProjectCostCategoryBudgetResult{}
	result.SnapshotRegenerated, err = mutateProject(ctx, projectId, actor, func(tx *gorm.DB, project *Project) error {
		pcc, err := lockProjectCostCategory(tx, id, projectId)
		if err != nil {
			return err
		}
		adjustment := ProjectCostCategoryBudgetAdjustment{
			ProjectCostCategoryId: pcc.ID,
			AdjustedBy:            actor,
			Note:                  input.Note,
			PreviousBudgetCost:    pcc.BudgetCost,
			NewBudgetCost:         input.BudgetCost.Round(moneyScale),
		}
		pcc.BudgetCost = adjustment.NewBudgetCost
		if err := tx.Model(pcc).UpdateColumns(map[string]interface{}{
			"budget_cost": pcc.BudgetCost,
			"updated_at":  time.Now(),
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			return err
		}
		result.ProjectCostCategory = pcc
		result.Adjustment = &adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OverrideSubDepartmentForecast replaces the computed forecast with the sum of the lines.
func OverrideSubDepartmentForecast(ctx context.Context, id int, input *NewForecastHoursOverride) (*SubDepartmentForecastResult, error) {
	ctx, span := tracer.Start(ctx, "OverrideSubDepartmentForecast")
	defer span.End()
	span.SetAttributes(attribute.Int("psr.sub_department_id", id))

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	total, err := input.validate()
	if err != nil {
		return nil, err
	}
	projectId, err := subDepartmentProjectId(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &SubDepartmentForecastResult{}
	result.SnapshotRegenerated, err = mutateProject(ctx, projectId, actor, func(tx *gorm.DB, project *Project) error {
		sub, dept, err := lockSubDepartment(tx, id, projectId)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		adjustment := ForecastAdjustment{
			SubDepartmentId:       sub.ID,
			AdjustedBy:            actor,
			Note:                  input.Note,
			PreviousForecastHours: sub.ForecastHours,
			NewForecastHours:      total.Round(hoursScale),
		}
		for _, l := range input.Lines {
			adjustment.Lines = append(adjustment.Lines, ForecastAdjustmentLine{
				Description: l.Description,
				Hours:       l.Hours.Round(hoursScale),
			})
		}

		sub.ForecastOverride = true
		sub.ForecastHours = adjustment.NewForecastHours
		sub.ForecastOverrideBy = actor
		sub.ForecastOverrideAt = &now
		sub.SyncBudget(dept.Rate(project.ExchangeRate))
		if err := tx.Model(sub).UpdateColumns(map[string]interface{}{
			"forecast_override":    true,
			"forecast_hours":       sub.ForecastHours,
			"forecast_cost":        sub.ForecastCost,
			"forecast_override_by": actor,
			"forecast_override_at": now,
			"budget_hours":         sub.BudgetHours,
			"updated_at":           now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			return err
		}
		result.SubDepartment = sub
		result.Adjustment = &adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func OverrideProjectCostCategoryForecast(ctx context.Context, id int, input *NewAmountOverride) (*ProjectCostCategoryForecastResult, error) {
	ctx, span := tracer.Start(ctx, "OverrideProjectCostCategoryForecast")
	defer span.End()
	span.SetAttributes(attribute.Int("psr.project_cost_category_id", id))

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	total, err := input.validate()
	if err != nil {
		return nil, err
	}
	projectId, err := projectCostCategoryProjectId(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &ProjectCostCategoryForecastResult{}
	result.SnapshotRegenerated, err = mutateProject(ctx, projectId, actor, func(tx *gorm.DB, project *Project) error {
		pcc, err := lockProjectCostCategory(tx, id, projectId)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		adjustment := MaterialForecastAdjustment{
			ProjectCostCategoryId: pcc.ID,
			AdjustedBy:            actor,
			Note:                  input.Note,
			PreviousForecastCost:  pcc.ForecastCost,
			NewForecastCost:       total.Round(moneyScale),
		}
		for _, l := range input.Lines {
			adjustment.Lines = append(adjustment.Lines, MaterialForecastAdjustmentLine{
				Description: l.Description,
				Amount:      l.Amount.Round(moneyScale),
			})
		}

		pcc.ForecastOverride = true
		pcc.ForecastCost = adjustment.NewForecastCost
		pcc.ForecastOverrideBy = actor
		pcc.ForecastOverrideAt = &now
		if err := tx.Model(pcc).UpdateColumns(map[string]interface{}{
			"forecast_override":    true,
			"forecast_cost":        pcc.ForecastCost,
			"forecast_override_by": actor,
			"forecast_override_at": now,
			"updated_at":           now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			return err
		}
		result.ProjectCostCategory = pcc
		result.Adjustment = &adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OverrideRKActual makes the line total the actual of the RK category in place of its
// purchase orders. The category keeps one adjustment whose lines are replaced.
func OverrideRKActual(ctx context.Context, id int, input *NewAmountOverride) (*RKActualResult, error) {
	ctx, span := tracer.Start(ctx, "OverrideRKActual")
	defer span.End()
	span.SetAttributes(attribute.Int("psr.project_cost_category_id", id))

	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	total, err := input.validate()
	if err != nil {
		return nil, err
	}
	projectId, err := projectCostCategoryProjectId(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &RKActualResult{}
	result.SnapshotRegenerated, err = mutateProject(ctx, projectId, actor, func(tx *gorm.DB, project *Project) error {
		pcc, err := lockProjectCostCategory(tx, id, projectId)
		if err != nil {
			return err
		}
		if !pcc.IsRK() {
			return utils.NewValidationError("project_cost_category", "actual override is only allowed for the RK category")
		}
		previous, err := rkManualActual(tx, pcc.ID)
		if err != nil {
			return err
		}

		var adjustment RKActualAdjustment
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("project_cost_category_id = ?", pcc.ID).First(&adjustment).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		adjustment.ProjectCostCategoryId = pcc.ID
		adjustment.AdjustedBy = actor
		adjustment.Note = input.Note
		adjustment.PreviousTotal = previous.Round(moneyScale)
		adjustment.NewTotal = total.Round(moneyScale)
		adjustment.AdjustedAt = time.Now().UTC()
		adjustment.Lines = nil
		if adjustment.ID == 0 {
			err = tx.Omit(clause.Associations).Create(&adjustment).Error
		} else {
			err = tx.Omit(clause.Associations).Save(&adjustment).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Where("adjustment_id = ?", adjustment.ID).Delete(&RKActualAdjustmentLine{}).Error; err != nil {
			return err
		}
		for _, l := range input.Lines {
			adjustment.Lines = append(adjustment.Lines, RKActualAdjustmentLine{
				AdjustmentId: adjustment.ID,
				Description:  l.Description,
				Amount:       l.Amount.Round(moneyScale),
			})
		}
		if err := tx.Create(&adjustment.Lines).Error; err != nil {
			return err
		}

		pcc.ActualOverride = true
		if err := tx.Model(pcc).UpdateColumns(map[string]interface{}{
			"actual_override": true,
			"updated_at":      adjustment.AdjustedAt,
		}).Error; err != nil {
			return err
		}
		result.ProjectCostCategory = pcc
		result.Adjustment = &adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

/* reads */

const noActiveOverride = "No active forecast override"

type SubDepartmentForecastOverride struct {
	SubDepartmentId    int                 `json:"sub_department_id"`
	Code               string              `json:"code"`
	ForecastOverride   bool                `json:"forecast_override"`
	Detail             string              `json:"detail,omitempty"`
	ForecastHours      *decimal.Decimal    `json:"forecast_hours,omitempty"`
	ForecastCost       *decimal.Decimal    `json:"forecast_cost,omitempty"`
	ForecastOverrideBy string              `json:"forecast_override_by,omitempty"`
	ForecastOverrideAt *time.Time          `json:"forecast_override_at,omitempty"`
	Adjustment         *ForecastAdjustment `json:"adjustment,omitempty"`
}

// GetSubDepartmentForecastOverride returns the active override with its latest adjustment.
func GetSubDepartmentForecastOverride(ctx context.Context, id int) (*SubDepartmentForecastOverride, error) {
	sub, err := utils.FetchSingleModel[SubDepartment](ctx, id)
	if err != nil {
		return nil, err
	}
	result := &SubDepartmentForecastOverride{SubDepartmentId: sub.ID, Code: sub.Code}
	if !sub.ForecastOverride {
		result.Detail = noActiveOverride
		return result, nil
	}
	var adjustment ForecastAdjustment
	err = config.GetDB().WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("sub_department_id = ?", id).Order("adjusted_at DESC, id DESC").First(&adjustment).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	result.ForecastOverride = true
	result.ForecastHours = &sub.ForecastHours
	result.ForecastCost = &sub.ForecastCost
	result.ForecastOverrideBy = sub.ForecastOverrideBy
	result.ForecastOverrideAt = sub.ForecastOverrideAt
	if adjustment.ID != 0 {
		result.Adjustment = &adjustment
	}
	return result, nil
}

type ProjectCostCategoryForecastOverride struct {
	ProjectCostCategoryId int                         `json:"project_cost_category_id"`
	Code                  string                      `json:"code"`
	ForecastOverride      bool                        `json:"forecast_override"`
	Detail                string                      `json:"detail,omitempty"`
	ForecastCost          *decimal.Decimal            `json:"forecast_cost,omitempty"`
	ForecastOverrideBy    string                      `json:"forecast_override_by,omitempty"`
	ForecastOverrideAt    *time.Time                  `json:"forecast_override_at,omitempty"`
	Adjustment            *MaterialForecastAdjustment `json:"adjustment,omitempty"`
}

func GetProjectCostCategoryForecastOverride(ctx context.Context, id int) (*ProjectCostCategoryForecastOverride, error) {
	pcc, err := utils.FetchSingleModel[ProjectCostCategory](ctx, id, "CostCategory")
	if err != nil {
		return nil, err
	}
	result := &ProjectCostCategoryForecastOverride{ProjectCostCategoryId: pcc.ID, Code: pcc.CostCategory.Code}
	if !pcc.ForecastOverride {
		result.Detail = noActiveOverride
		return result, nil
	}
	var adjustment MaterialForecastAdjustment
	err = config.GetDB().WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("project_cost_category_id = ?", id).Order("adjusted_at DESC, id DESC").First(&adjustment).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	result.ForecastOverride = true
	result.ForecastCost = &pcc.ForecastCost
	result.ForecastOverrideBy = pcc.ForecastOverrideBy
	result.ForecastOverrideAt = pcc.ForecastOverrideAt
	if adjustment.ID != 0 {
		result.Adjustment = &adjustment
	}
	return result, nil
}

type RKActualOverride struct {
	ProjectCostCategoryId int                 `json:"project_cost_category_id"`
	ActualOverride        bool                `json:"actual_override"`
	Total                 decimal.Decimal     `json:"total"`
	Adjustment            *RKActualAdjustment `json:"adjustment,omitempty"`
}

// GetRKActualOverride returns the manual actual of an RK category. Other categories are
// rejected with a validation error.
func GetRKActualOverride(ctx context.Context, id int) (*RKActualOverride, error) {
	pcc, err := utils.FetchSingleModel[ProjectCostCategory](ctx, id, "CostCategory")
	if err != nil {
		return nil, err
	}
	if !pcc.IsRK() {
		return nil, utils.NewValidationError("project_cost_category", "only the RK category has an actual override")
	}
	result := &RKActualOverride{ProjectCostCategoryId: pcc.ID, ActualOverride: pcc.ActualOverride}
	var adjustment RKActualAdjustment
	err = config.GetDB().WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("project_cost_category_id = ?", id).First(&adjustment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, nil
		}
		return nil, err
	}
	for _, l := range adjustment.Lines {
		result.Total = result.Total.Add(l.Amount)
	}
	result.Adjustment = &adjustment
	return result, nil
}
