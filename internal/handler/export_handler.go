package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/internal/service"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
	"github.com/noah-isme/docunet-api/pkg/response"
)

// ExportHandler exposes document inventory export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Generate godoc
// @Summary Generate a document inventory export
// @Tags Exports
// @Produce json
// @Param kind query string false "inventory | teachers | property"
// @Param format query string false "csv | pdf"
// @Success 201 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	kind := models.ExportKind(c.DefaultQuery("kind", string(models.ExportKindInventory)))
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportFormatCSV)))

	result, err := h.exports.Generate(c.Request.Context(), kind, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{
		"path":       result.RelativePath,
		"url":        result.URL,
		"format":     result.Format,
		"expires_at": result.ExpiresAt,
	})
}

// Download godoc
// @Summary Download a generated export via a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid or expired token"))
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(relPath)+`"`)
	http.ServeContent(c.Writer, c.Request, filepath.Base(relPath), fileModTime(file), file)
}

func fileModTime(f *os.File) time.Time {
	info, err := f.Stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
