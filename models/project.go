package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// money and percentage columns are decimal(20,4); exchange rates keep 6 places
const (
	moneyScale int32 = 4
	rateScale  int32 = 6
)

var validate = validator.New()

type Project struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	CoNo                string          `gorm:"size:50;uniqueIndex;not null" json:"co_no"`
	ProjectName         string          `gorm:"size:255;not null" json:"project_name"`
	Location            string          `gorm:"size:255" json:"location"`
	ProjectManager      string          `gorm:"size:100" json:"project_manager"`
	ProjectManagerEmail string          `gorm:"size:255" json:"project_manager_email"`
	SalesPerson         string          `gorm:"size:100" json:"sales_person"`
	SalesPersonEmail    string          `gorm:"size:255" json:"sales_person_email"`
	CwNo                string          `gorm:"size:100" json:"cw_no"`
	CurrentPhase        string          `gorm:"size:100" json:"current_phase"`
	SettlementPeriod    string          `gorm:"size:100" json:"settlement_period"`
	Currency            Currency        `gorm:"type:enum('INR','USD','EUR','GBP','CHF');default:INR" json:"currency"`
	ExchangeRate        decimal.Decimal `gorm:"type:decimal(20,6);default:1" json:"exchange_rate"`

	SalesValueForeignCurr decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_value_foreign_curr"`
	EbitPercentage        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ebit_percentage"`
	SgnaPercentage        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sgna_percentage"`
	EffPercentage         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"eff_percentage"`
	TerPercentage         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ter_percentage"`

	// derived by ApplyFinancialPlan
	SalesValue             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_value"`
	EbitValue              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ebit_value"`
	SgnaValue              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sgna_value"`
	CostWithSgna           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_with_sgna"`
	Hk                     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hk"`
	DirectMarginValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"direct_margin_value"`
	DirectMarginPercentage decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"direct_margin_percentage"`
	TerValue               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ter_value"`
	EffValue               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"eff_value"`
	ActualBudget           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"actual_budget"`
	Factor                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"factor"`
	Budget                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget"`

	Departments []Department `gorm:"foreignKey:ProjectId" json:"departments,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrStaleFinancialPlan = errors.New("derived financial plan is out of date with its inputs")

func (p *Project) planInput() psr.PlanInput {
	return psr.PlanInput{
		SalesValueForeign: p.SalesValueForeignCurr,
		ExchangeRate:      p.ExchangeRate,
		EbitPercentage:    p.EbitPercentage,
		SgnaPercentage:    p.SgnaPercentage,
		EffPercentage:     p.EffPercentage,
		TerPercentage:     p.TerPercentage,
	}
}

func (p *Project) financialPlan() psr.FinancialPlan {
	return psr.FinancialPlan{
		SalesValue:             p.SalesValue,
		EbitValue:              p.EbitValue,
		SgnaValue:              p.SgnaValue,
		CostWithSgna:           p.CostWithSgna,
		Hk:                     p.Hk,
		DirectMarginValue:      p.DirectMarginValue,
		DirectMarginPercentage: p.DirectMarginPercentage,
		TerValue:               p.TerValue,
		EffValue:               p.EffValue,
		ActualBudget:           p.ActualBudget,
		Factor:                 p.Factor,
		Budget:                 p.Budget,
	}
}

// ApplyFinancialPlan normalizes the plan inputs to their column scale and recomputes
// every derived field from them. Call it after changing any input and before saving.
func (p *Project) ApplyFinancialPlan() {
	p.SalesValueForeignCurr = p.SalesValueForeignCurr.Round(moneyScale)
	p.ExchangeRate = p.ExchangeRate.Round(rateScale)
	p.EbitPercentage = p.EbitPercentage.Round(moneyScale)
	p.SgnaPercentage = p.SgnaPercentage.Round(moneyScale)
	p.EffPercentage = p.EffPercentage.Round(moneyScale)
	p.TerPercentage = p.TerPercentage.Round(moneyScale)

	plan := psr.CalculateFinancialPlan(p.planInput(), p.financialPlan()).Round(moneyScale)
	p.SalesValue = plan.SalesValue
	p.EbitValue = plan.EbitValue
	p.SgnaValue = plan.SgnaValue
	p.CostWithSgna = plan.CostWithSgna
	p.Hk = plan.Hk
	p.DirectMarginValue = plan.DirectMarginValue
	p.DirectMarginPercentage = plan.DirectMarginPercentage
	p.TerValue = plan.TerValue
	p.EffValue = plan.EffValue
	p.ActualBudget = plan.ActualBudget
	p.Factor = plan.Factor
	p.Budget = plan.Budget
}

// FinancialPlanIsCurrent reports whether the stored derived fields match the inputs.
func (p *Project) FinancialPlanIsCurrent() bool {
	current := p.financialPlan().Round(moneyScale)
	return psr.CalculateFinancialPlan(p.planInput(), current).Round(moneyScale).Equal(current)
}

// BeforeSave rejects a project whose derived plan was not recomputed after an input change.
func (p *Project) BeforeSave(*gorm.DB) error {
	if p == nil {
		return nil
	}
	if !p.FinancialPlanIsCurrent() {
		return fmt.Errorf("project %s: %w", p.CoNo, ErrStaleFinancialPlan)
	}
	return nil
}

func (p *Project) psrPlan() psr.Plan {
	return psr.Plan{
		SalesValue:   p.SalesValue,
		ActualBudget: p.ActualBudget,
		EffValue:     p.EffValue,
		TerValue:     p.TerValue,
		Factor:       p.Factor,
	}
}

type DepartmentBudgetInput struct {
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
}

type NewProject struct {
	CoNo                  string          `json:"co_no" validate:"required,max=50"`
	ProjectName           string          `json:"project_name" validate:"required,max=255"`
	Location              string          `json:"location" validate:"max=255"`
	ProjectManager        string          `json:"project_manager" validate:"required,max=100"`
	ProjectManagerEmail   string          `json:"project_manager_email" validate:"required,email"`
	SalesPerson           string          `json:"sales_person" validate:"required,max=100"`
	SalesPersonEmail      string          `json:"sales_person_email" validate:"required,email"`
	SalesValueForeignCurr decimal.Decimal `json:"sales_value_foreign_curr"`
	EbitPercentage        decimal.Decimal `json:"ebit_percentage"`
	SgnaPercentage        decimal.Decimal `json:"sgna_percentage"`
	EffPercentage         decimal.Decimal `json:"eff_percentage"`
	TerPercentage         decimal.Decimal `json:"ter_percentage"`
	Currency              Currency        `json:"currency"`
	ExchangeRate          decimal.Decimal `json:"exchange_rate"`

	// keyed by department name, sub-department code and cost category code
	DepartmentBudgets    map[string]DepartmentBudgetInput `json:"department_budgets"`
	SubDepartmentBudgets map[string]decimal.Decimal       `json:"sub_department_budgets"`
	CostCategoryBudgets  map[string]decimal.Decimal       `json:"cost_category_budgets"`
}

func checkNonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return utils.NewValidationError(field, "must be >= 0")
	}
	return nil
}

func (input *NewProject) validate(ctx context.Context, catalog *config.Catalog) error {
	input.CoNo = strings.TrimSpace(input.CoNo)
	if err := validate.Struct(input); err != nil {
		return err
	}
	if input.Currency == "" {
		input.Currency = BaseCurrency
	}
	if !input.Currency.IsValid() {
		return utils.NewValidationError("currency", "must be one of INR, USD, EUR, GBP, CHF")
	}
	if input.ExchangeRate.IsZero() && input.Currency == BaseCurrency {
		input.ExchangeRate = decimal.NewFromInt(1)
	}
	if !input.ExchangeRate.IsPositive() {
		return utils.NewValidationError("exchange_rate", "must be > 0")
	}
	for field, v := range map[string]decimal.Decimal{
		"sales_value_foreign_curr": input.SalesValueForeignCurr,
		"ebit_percentage":          input.EbitPercentage,
		"sgna_percentage":          input.SgnaPercentage,
		"eff_percentage":           input.EffPercentage,
		"ter_percentage":           input.TerPercentage,
	} {
		if err := checkNonNegative(field, v); err != nil {
			return err
		}
	}

	for name, b := range input.DepartmentBudgets {
		if !DepartmentName(name).IsValid() {
			return utils.NewValidationError("department_budgets", "unknown department "+name)
		}
		if b.HourlyRate != nil {
			if err := checkNonNegative("department_budgets."+name+".hourly_rate", *b.HourlyRate); err != nil {
				return err
			}
		}
	}
	subCodes := make(map[string]bool, len(catalog.SubDepartments))
	for _, s := range catalog.SubDepartments {
		subCodes[s.Code] = true
	}
	for code, v := range input.SubDepartmentBudgets {
		if !subCodes[code] {
			return utils.NewValidationError("sub_department_budgets", "unknown sub-department "+code)
		}
		if err := checkNonNegative("sub_department_budgets."+code, v); err != nil {
			return err
		}
	}
	catCodes := make(map[string]bool, len(catalog.CostCategories))
	for _, c := range catalog.CostCategories {
		catCodes[c.Code] = true
	}
	for code, v := range input.CostCategoryBudgets {
		if !catCodes[code] {
			return utils.NewValidationError("cost_category_budgets", "unknown cost category "+code)
		}
		if err := checkNonNegative("cost_category_budgets."+code, v); err != nil {
			return err
		}
	}

	var count int64
	if err := config.GetDB().WithContext(ctx).Model(&Project{}).Where("co_no = ?", input.CoNo).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("co_no", "a project with this CO number already exists")
	}
	return nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// CreateProject creates the project with its budget hierarchy and the first snapshot, dated today.
func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {
	ctx, span := tracer.Start(ctx, "CreateProject")
	defer span.End()

	actor, ok := utils.GetUsernameFromContext(ctx)
	if !ok || actor == "" {
		return nil, errors.New("username is required")
	}
	catalog, err := config.GetCatalog()
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, catalog); err != nil {
		return nil, err
	}
	defaultRate, err := decimal.NewFromString(catalog.DefaultHourlyRate)
	if err != nil {
		return nil, fmt.Errorf("catalog default hourly rate: %w", err)
	}

	project := Project{
		CoNo:                  input.CoNo,
		ProjectName:           input.ProjectName,
		Location:              input.Location,
		ProjectManager:        input.ProjectManager,
		ProjectManagerEmail:   input.ProjectManagerEmail,
		SalesPerson:           input.SalesPerson,
		SalesPersonEmail:      input.SalesPersonEmail,
		Currency:              input.Currency,
		ExchangeRate:          input.ExchangeRate,
		SalesValueForeignCurr: input.SalesValueForeignCurr,
		EbitPercentage:        input.EbitPercentage,
		SgnaPercentage:        input.SgnaPercentage,
		EffPercentage:         input.EffPercentage,
		TerPercentage:         input.TerPercentage,
	}
	project.ApplyFinancialPlan()

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			if isDuplicateKey(err) {
				return utils.NewValidationError("co_no", "a project with this CO number already exists")
			}
			return err
		}

		for _, name := range catalog.Departments {
			rate := defaultRate
			if b, ok := input.DepartmentBudgets[name]; ok && b.HourlyRate != nil {
				rate = *b.HourlyRate
			}
			dept := Department{
				ProjectId:  project.ID,
				Name:       DepartmentName(name),
				HourlyRate: rate.Round(moneyScale),
			}
			exchange := project.ExchangeRate
			for _, tmpl := range catalog.SubDepartmentsOf(name) {
				cost := input.SubDepartmentBudgets[tmpl.Code].Round(moneyScale)
				sub := SubDepartment{
					Code:               tmpl.Code,
					RoleDescrptn:       tmpl.RoleDescription,
					Inkrement:          tmpl.Inkrement,
					BaselineBudgetCost: cost,
					BudgetCost:         cost,
				}
				sub.SyncBudget(dept.Rate(exchange))
				sub.BaselineBudgetHours = sub.BudgetHours
				dept.SubDepartments = append(dept.SubDepartments, sub)
			}
			dept.refreshTotals()
			if err := tx.Create(&dept).Error; err != nil {
				return err
			}
		}

		var categories []CostCategory
		if err := tx.Order("code").Find(&categories).Error; err != nil {
			return err
		}
		for _, cat := range categories {
			cost := input.CostCategoryBudgets[cat.Code].Round(moneyScale)
			pcc := ProjectCostCategory{
				ProjectId:          project.ID,
				CostCategoryId:     cat.ID,
				BaselineBudgetCost: cost,
				BudgetCost:         cost,
			}
			if err := tx.Create(&pcc).Error; err != nil {
				return err
			}
		}

		today := psr.DateOnly(time.Now().UTC())
		if _, err := GenerateSnapshotTx(ctx, tx, project.ID, today, SnapshotFrequencyMonthly, actor); err != nil {
			return fmt.Errorf("first snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateReportCache()
	return &project, nil
}

type UpdateProject struct {
	ProjectName           *string          `json:"project_name" validate:"omitempty,max=255"`
	Location              *string          `json:"location" validate:"omitempty,max=255"`
	ProjectManager        *string          `json:"project_manager" validate:"omitempty,max=100"`
	ProjectManagerEmail   *string          `json:"project_manager_email" validate:"omitempty,email"`
	SalesPerson           *string          `json:"sales_person" validate:"omitempty,max=100"`
	SalesPersonEmail      *string          `json:"sales_person_email" validate:"omitempty,email"`
	SalesValueForeignCurr *decimal.Decimal `json:"sales_value_foreign_curr"`
	EbitPercentage        *decimal.Decimal `json:"ebit_percentage"`
	SgnaPercentage        *decimal.Decimal `json:"sgna_percentage"`
	EffPercentage         *decimal.Decimal `json:"eff_percentage"`
	TerPercentage         *decimal.Decimal `json:"ter_percentage"`
	Currency              *Currency        `json:"currency"`
	ExchangeRate          *decimal.Decimal `json:"exchange_rate"`

	DepartmentBudgets map[string]DepartmentBudgetInput `json:"department_budgets"`
}

func (input *UpdateProject) validate() error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if input.Currency != nil && !input.Currency.IsValid() {
		return utils.NewValidationError("currency", "must be one of INR, USD, EUR, GBP, CHF")
	}
	if input.ExchangeRate != nil && !input.ExchangeRate.IsPositive() {
		return utils.NewValidationError("exchange_rate", "must be > 0")
	}
	for field, v := range map[string]*decimal.Decimal{
		"sales_value_foreign_curr": input.SalesValueForeignCurr,
		"ebit_percentage":          input.EbitPercentage,
		"sgna_percentage":          input.SgnaPercentage,
		"eff_percentage":           input.EffPercentage,
		"ter_percentage":           input.TerPercentage,
	} {
		if v == nil {
			continue
		}
		if err := checkNonNegative(field, *v); err != nil {
			return err
		}
	}
	for name, b := range input.DepartmentBudgets {
		if !DepartmentName(name).IsValid() {
			return utils.NewValidationError("department_budgets", "unknown department "+name)
		}
		if b.HourlyRate != nil {
			if err := checkNonNegative("department_budgets."+name+".hourly_rate", *b.HourlyRate); err != nil {
				return err
			}
		}
	}
	return nil
}

func (input *UpdateProject) apply(p *Project) {
	if input.ProjectName != nil {
		p.ProjectName = *input.ProjectName
	}
	if input.Location != nil {
		p.Location = *input.Location
	}
	if input.ProjectManager != nil {
		p.ProjectManager = *input.ProjectManager
	}
	if input.ProjectManagerEmail != nil {
		p.ProjectManagerEmail = *input.ProjectManagerEmail
	}
	if input.SalesPerson != nil {
		p.SalesPerson = *input.SalesPerson
	}
	if input.SalesPersonEmail != nil {
		p.SalesPersonEmail = *input.SalesPersonEmail
	}
	if input.SalesValueForeignCurr != nil {
		p.SalesValueForeignCurr = *input.SalesValueForeignCurr
	}
	if input.EbitPercentage != nil {
		p.EbitPercentage = *input.EbitPercentage
	}
	if input.SgnaPercentage != nil {
		p.SgnaPercentage = *input.SgnaPercentage
	}
	if input.EffPercentage != nil {
		p.EffPercentage = *input.EffPercentage
	}
	if input.TerPercentage != nil {
		p.TerPercentage = *input.TerPercentage
	}
	if input.Currency != nil {
		p.Currency = *input.Currency
	}
	if input.ExchangeRate != nil {
		p.ExchangeRate = *input.ExchangeRate
	}
	p.ApplyFinancialPlan()
}

// UpdateProject changes descriptive fields, plan inputs and department hourly rates.
// Rate or exchange-rate changes re-derive every sub-department's hours from its cost.
// Budgets themselves only move through the audited budget mutations.
func UpdateProjectByCoNo(ctx context.Context, coNo string, input *UpdateProject) (*Project, error) {
	ctx, span := tracer.Start(ctx, "UpdateProject")
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var project Project
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("co_no = ?", coNo).First(&project).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		oldExchange := project.ExchangeRate
		input.apply(&project)
		if err := tx.Save(&project).Error; err != nil {
			return err
		}

		var departments []Department
		if err := tx.Preload("SubDepartments").Where("project_id = ?", project.ID).Find(&departments).Error; err != nil {
			return err
		}
		for i := range departments {
			dept := &departments[i]
			rateChanged := !oldExchange.Equal(project.ExchangeRate)
			if b, ok := input.DepartmentBudgets[string(dept.Name)]; ok && b.HourlyRate != nil {
				newRate := b.HourlyRate.Round(moneyScale)
				if !newRate.Equal(dept.HourlyRate) {
					dept.HourlyRate = newRate
					rateChanged = true
				}
			}
			if !rateChanged {
				continue
			}
			if err := dept.resync(tx, project.ExchangeRate); err != nil {
				return err
			}
		}
		return nil
	}, readCommitted)
	if err != nil {
		return nil, err
	}
	invalidateReportCache()
	return &project, nil
}

type NewProjectStatus struct {
	CwNo             *string `json:"cw_no" validate:"omitempty,max=100"`
	CurrentPhase     *string `json:"current_phase" validate:"omitempty,max=100"`
	SettlementPeriod *string `json:"settlement_period" validate:"omitempty,max=100"`
}

// ProjectBasic is the project header shown next to KPI pages.
type ProjectBasic struct {
	CoNo             string `json:"co_no"`
	ProjectName      string `json:"project_name"`
	ProjectManager   string `json:"project_manager"`
	CwNo             string `json:"cw_no"`
	CurrentPhase     string `json:"current_phase"`
	SettlementPeriod string `json:"settlement_period"`
}

func (p *Project) Basic() *ProjectBasic {
	return &ProjectBasic{
		CoNo:             p.CoNo,
		ProjectName:      p.ProjectName,
		ProjectManager:   p.ProjectManager,
		CwNo:             p.CwNo,
		CurrentPhase:     p.CurrentPhase,
		SettlementPeriod: p.SettlementPeriod,
	}
}

func UpdateProjectStatus(ctx context.Context, coNo string, input *NewProjectStatus) (*ProjectBasic, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if input.CwNo != nil {
		updates["cw_no"] = *input.CwNo
		project.CwNo = *input.CwNo
	}
	if input.CurrentPhase != nil {
		updates["current_phase"] = *input.CurrentPhase
		project.CurrentPhase = *input.CurrentPhase
	}
	if input.SettlementPeriod != nil {
		updates["settlement_period"] = *input.SettlementPeriod
		project.SettlementPeriod = *input.SettlementPeriod
	}
	if len(updates) > 0 {
		// status columns are outside the plan, skip hooks
		if err := config.GetDB().WithContext(ctx).Model(&Project{}).Where("id = ?", project.ID).
			UpdateColumns(updates).Error; err != nil {
			return nil, err
		}
	}
	return project.Basic(), nil
}

// (may return RecordNotFound)
func GetProjectByCoNo(ctx context.Context, coNo string) (*Project, error) {
	return utils.FetchModelWhere[Project](ctx, "co_no = ?", strings.TrimSpace(coNo))
}

func GetProjectBasic(ctx context.Context, coNo string) (*ProjectBasic, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	return project.Basic(), nil
}

// ProjectDetail is the editable view of a project: plan inputs plus the budget maps
// CreateProject accepts.
type ProjectDetail struct {
	CoNo                  string                                `json:"co_no"`
	ProjectName           string                                `json:"project_name"`
	Location              string                                `json:"location"`
	ProjectManager        string                                `json:"project_manager"`
	ProjectManagerEmail   string                                `json:"project_manager_email"`
	SalesPerson           string                                `json:"sales_person"`
	SalesPersonEmail      string                                `json:"sales_person_email"`
	SalesValueForeignCurr decimal.Decimal                       `json:"sales_value_foreign_curr"`
	SalesValue            decimal.Decimal                       `json:"sales_value"`
	EbitPercentage        decimal.Decimal                       `json:"ebit_percentage"`
	SgnaPercentage        decimal.Decimal                       `json:"sgna_percentage"`
	TerPercentage         decimal.Decimal                       `json:"ter_percentage"`
	EffPercentage         decimal.Decimal                       `json:"eff_percentage"`
	Budget                decimal.Decimal                       `json:"budget"`
	Currency              Currency                              `json:"currency"`
	ExchangeRate          decimal.Decimal                       `json:"exchange_rate"`
	DepartmentBudgets     map[string]map[string]decimal.Decimal `json:"department_budgets"`
	SubDepartmentBudgets  map[string]decimal.Decimal            `json:"sub_department_budgets"`
	CostCategoryBudgets   map[string]decimal.Decimal            `json:"cost_category_budgets"`
}

func GetProjectDetail(ctx context.Context, coNo string) (*ProjectDetail, error) {
	project, err := GetProjectByCoNo(ctx, coNo)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var departments []Department
	if err := db.Preload("SubDepartments").Where("project_id = ?", project.ID).Order("name").Find(&departments).Error; err != nil {
		return nil, err
	}
	var pccs []ProjectCostCategory
	if err := db.Preload("CostCategory").Where("project_id = ?", project.ID).Find(&pccs).Error; err != nil {
		return nil, err
	}

	detail := ProjectDetail{
		CoNo:                  project.CoNo,
		ProjectName:           project.ProjectName,
		Location:              project.Location,
		ProjectManager:        project.ProjectManager,
		ProjectManagerEmail:   project.ProjectManagerEmail,
		SalesPerson:           project.SalesPerson,
		SalesPersonEmail:      project.SalesPersonEmail,
		SalesValueForeignCurr: project.SalesValueForeignCurr,
		SalesValue:            project.SalesValue,
		EbitPercentage:        project.EbitPercentage,
		SgnaPercentage:        project.SgnaPercentage,
		TerPercentage:         project.TerPercentage,
		EffPercentage:         project.EffPercentage,
		Budget:                project.Budget,
		Currency:              project.Currency,
		ExchangeRate:          project.ExchangeRate,
		DepartmentBudgets:     make(map[string]map[string]decimal.Decimal, len(departments)),
		SubDepartmentBudgets:  make(map[string]decimal.Decimal),
		CostCategoryBudgets:   make(map[string]decimal.Decimal, len(pccs)),
	}
	for _, dept := range departments {
		detail.DepartmentBudgets[string(dept.Name)] = map[string]decimal.Decimal{"hourly_rate": dept.HourlyRate}
		for _, sub := range dept.SubDepartments {
			detail.SubDepartmentBudgets[sub.Code] = sub.BudgetCost
		}
	}
	for _, pcc := range pccs {
		detail.CostCategoryBudgets[pcc.CostCategory.Code] = pcc.BudgetCost
	}
	return &detail, nil
}

// ListProjects returns every project ordered by co_no.
func ListProjects(ctx context.Context) ([]*Project, error) {
	var results []*Project
	if err := config.GetDB().WithContext(ctx).Order("co_no").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
