// Package handlers exposes the PSR operations over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/utils"
)

// respondError maps model errors to a status: input problems are 400, unknown
// records 404, anything else 500 and logged.
func respondError(c *gin.Context, funcName string, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors) || utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "Handlers", funcName, c.FullPath(), cid, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": map[string]string{field: message}})
}

// bindJSON decodes the body into dest, answering 400 itself on malformed input.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		badRequest(c, "body", "invalid request: "+err.Error())
		return false
	}
	return true
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}

func coNoParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("co_no"))
}

// optionalDateParam reads the :date path segment; absent means the latest snapshot.
func optionalDateParam(c *gin.Context) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Param("date"))
	if raw == "" {
		return nil, true
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		badRequest(c, "snapshot_date", "expected YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}
