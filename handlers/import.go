package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/importer"
)

const maxImportSize = 32 << 20

type importFunc func(ctx context.Context, path string, dryRun bool) (*importer.Result, error)

// importUpload stores the multipart "file" in a temp file and runs run on it.
// ?dry_run=true parses and counts without writing.
func importUpload(funcName string, run importFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
		header, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "file", "a .xls or .xlsx upload is required")
			return
		}
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".xls" && ext != ".xlsx" && ext != ".xlsm" {
			badRequest(c, "file", "expected .xls or .xlsx")
			return
		}
		dryRun, _ := strconv.ParseBool(c.Query("dry_run"))

		tmp, err := os.CreateTemp("", "psr-import-*"+ext)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		path := tmp.Name()
		tmp.Close()
		defer os.Remove(path)
		if err := c.SaveUploadedFile(header, path); err != nil {
			respondError(c, funcName, err)
			return
		}

		res, err := run(c.Request.Context(), path, dryRun)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"file":    header.Filename,
			"dry_run": dryRun,
			"result":  res,
		})
	}
}
