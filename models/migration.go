package models

import (
	"log"

	"github.com/mmdatafocus/psr_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Project{}, &Department{}, &SubDepartment{},
		&CostCategory{}, &ProjectCostCategory{},
		&TimesheetEntry{}, &POData{},
		&SubDepartmentBudgetAdjustment{}, &ProjectCostCategoryBudgetAdjustment{},
		&ForecastAdjustment{}, &ForecastAdjustmentLine{},
		&MaterialForecastAdjustment{}, &MaterialForecastAdjustmentLine{},
		&RKActualAdjustment{}, &RKActualAdjustmentLine{},
		&PSRSnapshot{},
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := SeedCostCategories(db); err != nil {
		log.Fatal(err)
	}
}

// SeedCostCategories upserts the catalog's cost categories by code.
func SeedCostCategories(db *gorm.DB) error {
	catalog, err := config.GetCatalog()
	if err != nil {
		return err
	}
	rows := make([]CostCategory, 0, len(catalog.CostCategories))
	for _, c := range catalog.CostCategories {
		rows = append(rows, CostCategory{Code: c.Code, Name: c.Name, MatCode: c.MatCode})
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "mat_code", "updated_at"}),
	}).Create(&rows).Error
}
