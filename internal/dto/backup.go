package dto

import (
	"time"

	"github.com/noah-isme/docunet-api/internal/models"
)

// SnapshotResponse describes a completed backup with signed download URLs.
type SnapshotResponse struct {
	models.Snapshot
	EncryptedDownloadURL string `json:"encrypted_download_url,omitempty"`
	DecryptedDownloadURL string `json:"decrypted_download_url,omitempty"`
}

// ArchiveInfo lists one stored backup archive.
type ArchiveInfo struct {
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size_bytes"`
	ModifiedAt  time.Time `json:"modified_at"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// RestoreRequest selects the archive variant and apply mode.
type RestoreRequest struct {
	Encrypted bool               `form:"encrypted" json:"encrypted"`
	Mode      models.RestoreMode `form:"mode" json:"mode" binding:"omitempty,oneof=replace merge"`
}
