package service

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/dto"
	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
	"github.com/noah-isme/docunet-api/pkg/storage"
)

const databaseDumpEntry = "database.sql"

type dumpSource interface {
	Dump(ctx context.Context) ([]byte, error)
}

type indexBuilder interface {
	Build(ctx context.Context) (*MetadataIndex, error)
}

type archiveBlobSource interface {
	AllFiles() ([]string, error)
	Read(filename string) ([]byte, error)
}

// BackupConfig locates the archive directory and download signing.
type BackupConfig struct {
	StorageDir   string
	APIPrefix    string
	SignedURLTTL time.Duration
}

// BackupService produces snapshot archives: one with blobs byte-for-byte as
// stored, one with teacher-document blobs decrypted for offline reading. Both
// carry the full database dump at their root.
type BackupService struct {
	dump    dumpSource
	indexer indexBuilder
	blobs   archiveBlobSource
	box     *cryptobox.Box
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     BackupConfig
}

// NewBackupService constructs the service. signer may be nil; download URLs
// are then omitted from listings.
func NewBackupService(dump dumpSource, indexer indexBuilder, blobs archiveBlobSource, box *cryptobox.Box, signer *storage.SignedURLSigner, logger *zap.Logger, cfg BackupConfig) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		dump:    dump,
		indexer: indexer,
		blobs:   blobs,
		box:     box,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// BuildSnapshot writes both archive variants and returns their paths.
func (s *BackupService) BuildSnapshot(ctx context.Context) (*models.Snapshot, error) {
	now := time.Now()
	stamp := now.Format("20060102_150405")

	dumpSQL, err := s.dump.Dump(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "dump database")
	}
	index, err := s.indexer.Build(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.blobs.AllFiles()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enumerate storage")
	}
	sort.Strings(keys)

	if err := os.MkdirAll(s.cfg.StorageDir, 0o755); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create backup directory")
	}

	encPath := filepath.Join(s.cfg.StorageDir, "backup_"+stamp+".zip")
	decPath := filepath.Join(s.cfg.StorageDir, "backup_"+stamp+"_decrypted.zip")

	if err := s.writeArchive(encPath, dumpSQL, index, keys, false); err != nil {
		return nil, err
	}
	if err := s.writeArchive(decPath, dumpSQL, index, keys, true); err != nil {
		os.Remove(encPath) //nolint:errcheck
		return nil, err
	}

	s.logger.Info("snapshot built",
		zap.String("encrypted", encPath),
		zap.String("decrypted", decPath),
		zap.Int("indexed_documents", index.Len()),
		zap.Int("stored_files", len(keys)))

	return &models.Snapshot{
		EncryptedArchive: encPath,
		DecryptedArchive: decPath,
		CreatedAt:        now,
	}, nil
}

// writeArchive packages the dump and every stored file into one zip. With
// decrypt set, teacher-document blobs are decrypted before packaging; a blob
// that fails to decrypt is assumed to predate encryption and is copied as-is.
func (s *BackupService) writeArchive(dest string, dumpSQL []byte, index *MetadataIndex, keys []string, decrypt bool) error {
	out, err := os.Create(dest)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create archive file")
	}
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)

	if err := writeZipEntry(zw, databaseDumpEntry, dumpSQL); err != nil {
		return err
	}

	for _, key := range keys {
		data, err := s.blobs.Read(key)
		if err != nil {
			s.logger.Warn("skip unreadable file", zap.String("key", key), zap.Error(err))
			continue
		}

		entry := path.Join(archiveStorageRoot, archiveMiscDir, key)
		if doc, ok := index.Lookup(key); ok {
			entry = path.Join(archiveStorageRoot, doc.ArchivePath())
			if decrypt && doc.Teacher != "" {
				plain, derr := s.box.Decrypt(string(data))
				if derr != nil {
					s.logger.Warn("blob not decryptable, copied as stored",
						zap.String("key", key), zap.Error(derr))
				} else {
					data = plain
				}
			}
		}

		if err := writeZipEntry(zw, entry, data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "finalize archive")
	}
	if err := out.Close(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "flush archive")
	}
	return nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create archive entry")
	}
	if _, err := w.Write(data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write archive entry")
	}
	return nil
}

// ListArchives returns the stored snapshot archives, newest first, with
// signed download URLs when a signer is configured.
func (s *BackupService) ListArchives(_ context.Context) ([]dto.ArchiveInfo, error) {
	entries, err := os.ReadDir(s.cfg.StorageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []dto.ArchiveInfo{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read backup directory")
	}

	archives := make([]dto.ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		item := dto.ArchiveInfo{
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		}
		if url, err := s.SignArchive(entry.Name()); err == nil {
			item.DownloadURL = url
		}
		archives = append(archives, item)
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ModifiedAt.After(archives[j].ModifiedAt)
	})
	return archives, nil
}

// SignArchive returns a signed download URL for a stored archive name.
func (s *BackupService) SignArchive(name string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "archive downloads are not configured")
	}
	token, _, err := s.signer.Generate("backup", name)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign archive url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/backups/download/%s", prefix, token), nil
}

// ResolveArchive validates a signed download token and returns the absolute
// archive path it grants access to.
func (s *BackupService) ResolveArchive(token string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "archive downloads are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	name := filepath.Base(relPath)
	full := filepath.Join(s.cfg.StorageDir, name)
	if _, err := os.Stat(full); err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}
	return full, nil
}

// ArchivePathByName resolves a stored archive by bare file name, rejecting
// anything that escapes the backup directory.
func (s *BackupService) ArchivePathByName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid archive name")
	}
	full := filepath.Join(s.cfg.StorageDir, name)
	if _, err := os.Stat(full); err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}
	return full, nil
}
