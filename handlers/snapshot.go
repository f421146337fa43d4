package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/models"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
)

type generateSnapshotRequest struct {
	SnapshotDate string `json:"snapshot_date"`
	Frequency    string `json:"frequency"`
}

// generateSnapshot creates or replaces the project's snapshot for a date (today by default).
func generateSnapshot(c *gin.Context) {
	var req generateSnapshotRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	date := psr.DateOnly(time.Now().UTC())
	if strings.TrimSpace(req.SnapshotDate) != "" {
		d, err := utils.ParseDate(req.SnapshotDate)
		if err != nil {
			badRequest(c, "snapshot_date", "expected YYYY-MM-DD")
			return
		}
		date = d
	}
	frequency, err := models.ParseSnapshotFrequency(req.Frequency)
	if err != nil {
		badRequest(c, "frequency", "must be one of MONTHLY, BIWEEKLY, WEEKLY")
		return
	}
	actor, _ := utils.GetUsernameFromContext(c.Request.Context())

	res, err := models.GenerateSnapshotByCoNo(c.Request.Context(), coNoParam(c), date, frequency, actor)
	if err != nil {
		respondError(c, "generateSnapshot", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"detail":         "Snapshot generated successfully",
		"first_snapshot": res.FirstSnapshot,
		"diagnostics":    res.Diagnostics,
		"snapshot":       res.Snapshot,
	})
}

func getTimesheetSection(c *gin.Context) {
	date, ok := optionalDateParam(c)
	if !ok {
		return
	}
	section, err := models.GetTimesheetSection(c.Request.Context(), coNoParam(c), date)
	if err != nil {
		respondError(c, "getTimesheetSection", err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func getCostToGoSection(c *gin.Context) {
	date, ok := optionalDateParam(c)
	if !ok {
		return
	}
	section, err := models.GetCostToGoSection(c.Request.Context(), coNoParam(c), date)
	if err != nil {
		respondError(c, "getCostToGoSection", err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func getTimesheetHistory(c *gin.Context) {
	history, err := models.GetTimesheetHistory(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getTimesheetHistory", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func getCostToGoHistory(c *gin.Context) {
	history, err := models.GetCostToGoHistory(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getCostToGoHistory", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func getLatestKPI(c *gin.Context) {
	kpi, err := models.GetLatestKPI(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getLatestKPI", err)
		return
	}
	c.JSON(http.StatusOK, kpi)
}

func getKPIHistory(c *gin.Context) {
	history, err := models.GetKPIHistory(c.Request.Context(), coNoParam(c))
	if err != nil {
		respondError(c, "getKPIHistory", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func getLandingData(c *gin.Context) {
	summary, err := models.GetLandingData(c.Request.Context())
	if err != nil {
		respondError(c, "getLandingData", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func getProjectsLatestSnapshots(c *gin.Context) {
	res, err := models.GetProjectsLatestSnapshots(c.Request.Context())
	if err != nil {
		respondError(c, "getProjectsLatestSnapshots", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func getCumulativeKPIHistory(c *gin.Context) {
	res, err := models.GetCumulativeKPIHistory(c.Request.Context())
	if err != nil {
		respondError(c, "getCumulativeKPIHistory", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
