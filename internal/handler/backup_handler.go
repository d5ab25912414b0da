package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docunet-api/internal/dto"
	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/internal/service"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
	"github.com/noah-isme/docunet-api/pkg/response"
)

// BackupHandler exposes snapshot creation, archive listing/download and
// restore endpoints.
type BackupHandler struct {
	backups  *service.BackupService
	restores *service.RestoreService
	metrics  *service.MetricsService
}

// NewBackupHandler constructs handler. metrics may be nil.
func NewBackupHandler(backups *service.BackupService, restores *service.RestoreService, metrics *service.MetricsService) *BackupHandler {
	return &BackupHandler{backups: backups, restores: restores, metrics: metrics}
}

// Run godoc
// @Summary Build encrypted and decrypted snapshot archives
// @Tags Backups
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /backups [post]
func (h *BackupHandler) Run(c *gin.Context) {
	snapshot, err := h.backups.BuildSnapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveSnapshot()

	resp := dto.SnapshotResponse{Snapshot: *snapshot}
	if url, err := h.backups.SignArchive(filepath.Base(snapshot.EncryptedArchive)); err == nil {
		resp.EncryptedDownloadURL = url
	}
	if url, err := h.backups.SignArchive(filepath.Base(snapshot.DecryptedArchive)); err == nil {
		resp.DecryptedDownloadURL = url
	}
	response.Created(c, resp)
}

// List godoc
// @Summary List stored snapshot archives
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	archives, err := h.backups.ListArchives(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archives, nil)
}

// Download godoc
// @Summary Download an archive via a signed token
// @Tags Backups
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Router /backups/download/{token} [get]
func (h *BackupHandler) Download(c *gin.Context) {
	archivePath, err := h.backups.ResolveArchive(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(archivePath, filepath.Base(archivePath))
}

// Restore godoc
// @Summary Restore database and files from an uploaded archive
// @Tags Backups
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups/restore [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	var req dto.RestoreRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	var archivePath string
	if name := c.PostForm("archive"); name != "" {
		// Restore from an archive already in the backup directory.
		resolved, err := h.backups.ArchivePathByName(name)
		if err != nil {
			response.Error(c, err)
			return
		}
		archivePath = resolved
	} else {
		fh, err := c.FormFile("file")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "archive file or name is required"))
			return
		}
		tmp, err := os.CreateTemp("", "docunet-upload-*.zip")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stage uploaded archive"))
			return
		}
		tmp.Close()                 //nolint:errcheck
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if err := c.SaveUploadedFile(fh, tmp.Name()); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stage uploaded archive"))
			return
		}
		archivePath = tmp.Name()
	}

	report, err := h.restores.Restore(c.Request.Context(), archivePath, models.RestoreOptions{
		Encrypted: req.Encrypted,
		Mode:      req.Mode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveRestore()
	response.JSON(c, http.StatusOK, report, nil)
}
