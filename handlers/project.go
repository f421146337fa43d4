package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/models"
)

func createProject(c *gin.Context) {
	var input models.NewProject
	if !bindJSON(c, &input) {
		return
	}
	project, err := models.CreateProject(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createProject", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"detail":  "Project created successfully",
		"co_no":   project.CoNo,
		"project": project,
	})
}

func getProjectDetail(c *gin.Context) {
	detail, err := models.GetProjectDetail(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getProjectDetail", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func updateProject(c *gin.Context) {
	var input models.UpdateProject
	if !bindJSON(c, &input) {
		return
	}
	project, err := models.UpdateProjectByCoNo(c.Request.Context(), coNoParam(c), &input)
	if err != nil {
		respondError(c, "updateProject", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detail":  "Project updated successfully",
		"project": project,
	})
}

// getProjectBasic is the header of the KPI pages.
func getProjectBasic(c *gin.Context) {
	basic, err := models.GetProjectBasic(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getProjectBasic", err)
		return
	}
	c.JSON(http.StatusOK, basic)
}

func updateProjectStatus(c *gin.Context) {
	var input models.NewProjectStatus
	if !bindJSON(c, &input) {
		return
	}
	basic, err := models.UpdateProjectStatus(c.Request.Context(), coNoParam(c), &input)
	if err != nil {
		respondError(c, "updateProjectStatus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detail": "Project updated successfully",
		"data":   basic,
	})
}
