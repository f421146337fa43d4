package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/importer"
	"github.com/mmdatafocus/psr_backend/middlewares"
)

// RegisterRoutes mounts the PSR API. Reads are open; writes need an authenticated user.
func RegisterRoutes(r gin.IRouter) {
	auth := middlewares.RequireUser()

	r.GET("/landing-data", getLandingData)
	r.GET("/projects/latest-snapshots", getProjectsLatestSnapshots)
	r.GET("/projects/history-kpi", getCumulativeKPIHistory)

	r.POST("/projects", auth, createProject)
	r.GET("/projects/:co_no", getProjectDetail)
	r.PATCH("/projects/:co_no", auth, updateProject)
	r.GET("/projects/:co_no/kpi-details", getProjectBasic)
	r.PATCH("/projects/:co_no/status", auth, updateProjectStatus)

	r.POST("/projects/:co_no/snapshots", auth, generateSnapshot)
	r.GET("/projects/:co_no/snapshot/timesheet", getTimesheetSection)
	r.GET("/projects/:co_no/snapshot/timesheet/:date", getTimesheetSection)
	r.GET("/projects/:co_no/snapshot/cost-to-go", getCostToGoSection)
	r.GET("/projects/:co_no/snapshot/cost-to-go/:date", getCostToGoSection)
	r.GET("/projects/:co_no/snapshot-history/timesheet", getTimesheetHistory)
	r.GET("/projects/:co_no/snapshot-history/cost-to-go", getCostToGoHistory)
	r.GET("/projects/:co_no/snapshot/latest-kpi", getLatestKPI)
	r.GET("/projects/:co_no/snapshot/history-kpi", getKPIHistory)

	r.PATCH("/subdepartments/:id/budget", auth, updateSubDepartmentBudget)
	r.PATCH("/subdepartments/:id/forecast-override", auth, overrideSubDepartmentForecast)
	r.GET("/subdepartments/:id/forecast-override", getSubDepartmentForecastOverride)

	r.PATCH("/project-cost-categories/:id/budget", auth, updateProjectCostCategoryBudget)
	r.PATCH("/project-cost-categories/:id/forecast-override", auth, overrideProjectCostCategoryForecast)
	r.GET("/project-cost-categories/:id/forecast-override", getProjectCostCategoryForecastOverride)
	r.PATCH("/project-cost-categories/:id/rk-actual-override", auth, overrideRKActual)
	r.GET("/project-cost-categories/:id/rk-actual-override", getRKActualOverride)

	r.POST("/imports/timesheet", auth, importUpload("importTimesheet", importer.ImportTimesheet))
	r.POST("/imports/po-data", auth, importUpload("importPOData", importer.ImportPOData))
}
