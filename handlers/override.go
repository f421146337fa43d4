package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/models"
)

func updateSubDepartmentBudget(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewBudgetHours
	if !bindJSON(c, &input) {
		return
	}
	res, err := models.UpdateSubDepartmentBudget(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateSubDepartmentBudget", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func overrideSubDepartmentForecast(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewForecastHoursOverride
	if !bindJSON(c, &input) {
		return
	}
	res, err := models.OverrideSubDepartmentForecast(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "overrideSubDepartmentForecast", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func getSubDepartmentForecastOverride(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := models.GetSubDepartmentForecastOverride(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getSubDepartmentForecastOverride", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func updateProjectCostCategoryBudget(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewBudgetCost
	if !bindJSON(c, &input) {
		return
	}
	res, err := models.UpdateProjectCostCategoryBudget(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateProjectCostCategoryBudget", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func overrideProjectCostCategoryForecast(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewAmountOverride
	if !bindJSON(c, &input) {
		return
	}
	res, err := models.OverrideProjectCostCategoryForecast(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "overrideProjectCostCategoryForecast", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func getProjectCostCategoryForecastOverride(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := models.GetProjectCostCategoryForecastOverride(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getProjectCostCategoryForecastOverride", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func overrideRKActual(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewAmountOverride
	if !bindJSON(c, &input) {
		return
	}
	res, err := models.OverrideRKActual(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "overrideRKActual", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func getRKActualOverride(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := models.GetRKActualOverride(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getRKActualOverride", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
