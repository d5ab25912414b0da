package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docunet-api/internal/dto"
	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/internal/service"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
	"github.com/noah-isme/docunet-api/pkg/response"
)

// DocumentHandler exposes document upload, scan, listing and retrieval
// endpoints.
type DocumentHandler struct {
	ingest    *service.IngestService
	documents *service.DocumentService
}

// NewDocumentHandler constructs handler.
func NewDocumentHandler(ingest *service.IngestService, documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, documents: documents}
}

// Upload godoc
// @Summary Upload a batch of documents
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req dto.UploadDocumentsRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	uploader := uploaderFromContext(c)
	if uploader == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "acting user is required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form required"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	statuses := make([]dto.UploadFileStatus, 0, len(files))
	for _, fh := range files {
		statuses = append(statuses, h.ingestOne(c, fh, uploader, req))
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// ingestOne processes a single file from the batch; its failure never aborts
// the remaining files.
func (h *DocumentHandler) ingestOne(c *gin.Context, fh *multipart.FileHeader, uploader string, req dto.UploadDocumentsRequest) dto.UploadFileStatus {
	status := dto.UploadFileStatus{FileName: fh.Filename}

	contents, err := readMultipartFile(fh)
	if err != nil {
		status.Status = "error"
		status.Message = "unreadable file"
		return status
	}

	record, err := h.ingest.Ingest(c.Request.Context(), service.IngestInput{
		FileName:   fh.Filename,
		Contents:   contents,
		MimeType:   fh.Header.Get("Content-Type"),
		TeacherID:  req.TeacherID,
		CategoryID: req.CategoryID,
		UploaderID: uploader,
	}, service.IngestOptions{
		AllowDuplicate: req.AllowDuplicate,
		SkipOCR:        req.SkipOCR,
	})
	if err != nil {
		var conflict *service.ConflictError
		if errors.As(err, &conflict) {
			status.Status = "duplicate"
			status.Conflict = conflict.Name
			status.Message = appErrors.FromError(err).Message
			return status
		}
		status.Status = "error"
		status.Message = appErrors.FromError(err).Message
		return status
	}

	status.Status = "uploaded"
	status.Document = record
	return status
}

// Scan godoc
// @Summary Detect teacher and category for a file without persisting it
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/scan [post]
func (h *DocumentHandler) Scan(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	contents, err := readMultipartFile(fh)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable file"))
		return
	}

	teacher, category, belongsToTeacher, err := h.ingest.Scan(c.Request.Context(), fh.Filename, contents)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ScanResponse{
		Teacher:          teacher,
		Category:         category,
		BelongsToTeacher: belongsToTeacher,
	}, nil)
}

// List godoc
// @Summary List teacher documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var filter dto.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	docs, total, err := h.documents.List(c.Request.Context(), models.DocumentFilter{
		TeacherID:  filter.TeacherID,
		CategoryID: filter.CategoryID,
		Search:     filter.Search,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// ListProperty godoc
// @Summary List school property documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/property [get]
func (h *DocumentHandler) ListProperty(c *gin.Context) {
	docs, err := h.documents.ListProperty(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Get godoc
// @Summary Fetch one teacher document record
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Download godoc
// @Summary Download the decrypted contents of a teacher document
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, data, err := h.documents.OpenContents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	c.Data(http.StatusOK, doc.MimeType, data)
}

// Preview godoc
// @Summary Stream the preview of a teacher document
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Router /documents/{id}/preview [get]
func (h *DocumentHandler) Preview(c *gin.Context) {
	_, data, err := h.documents.OpenPreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

// DownloadProperty godoc
// @Summary Download a property document
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Router /documents/property/{id}/download [get]
func (h *DocumentHandler) DownloadProperty(c *gin.Context) {
	doc, data, err := h.documents.OpenPropertyContents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	c.Data(http.StatusOK, doc.MimeType, data)
}

// Delete godoc
// @Summary Delete a teacher document and its stored files
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteProperty godoc
// @Summary Delete a property document and its stored file
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/property/{id} [delete]
func (h *DocumentHandler) DeleteProperty(c *gin.Context) {
	if err := h.documents.DeleteProperty(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return io.ReadAll(f)
}
