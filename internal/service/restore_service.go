package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

type dumpApplier interface {
	Apply(ctx context.Context, dump []byte, merge bool) error
}

type restoreBlobStore interface {
	Save(filename string, data []byte) (string, error)
}

// RestoreService applies a snapshot archive back onto the live database and
// file store. The database apply is the point of no return; file restoration
// afterwards is best-effort and tallied in the report.
type RestoreService struct {
	dump    dumpApplier
	indexer indexBuilder
	blobs   restoreBlobStore
	box     *cryptobox.Box
	logger  *zap.Logger
}

func NewRestoreService(dump dumpApplier, indexer indexBuilder, blobs restoreBlobStore, box *cryptobox.Box, logger *zap.Logger) *RestoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestoreService{
		dump:    dump,
		indexer: indexer,
		blobs:   blobs,
		box:     box,
		logger:  logger,
	}
}

// Restore extracts the archive, applies its database dump and then restores
// every file the freshly restored database references. Individual missing
// files increment the report counters; only an unreadable archive or a
// missing/failed dump aborts the run.
func (s *RestoreService) Restore(ctx context.Context, archivePath string, opts models.RestoreOptions) (*models.RestoreReport, error) {
	if opts.Mode == "" {
		opts.Mode = models.RestoreModeReplace
	}
	if opts.Mode != models.RestoreModeReplace && opts.Mode != models.RestoreModeMerge {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mode must be replace or merge")
	}

	workspace, err := os.MkdirTemp("", "docunet-restore-*")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create restore workspace")
	}
	defer os.RemoveAll(workspace) //nolint:errcheck

	if err := extractArchive(archivePath, workspace); err != nil {
		return nil, err
	}

	dumpPath, err := findDatabaseDump(workspace)
	if err != nil {
		return nil, err
	}
	dumpSQL, err := os.ReadFile(dumpPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrArchive.Code, appErrors.ErrArchive.Status, "read database dump")
	}

	if err := s.dump.Apply(ctx, dumpSQL, opts.Mode == models.RestoreModeMerge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "apply database dump")
	}

	report := &models.RestoreReport{DBRestored: true}

	// The restored database is authoritative for which documents exist; the
	// archive is only consulted for their bytes.
	index, err := s.indexer.Build(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, "metadata index rebuild failed: "+err.Error())
		s.logger.Error("index rebuild after restore failed", zap.Error(err))
		return report, nil
	}

	storageRoot := filepath.Join(workspace, archiveStorageRoot)

	for _, doc := range index.TeacherDocs {
		s.restoreDocument(doc, storageRoot, opts.Encrypted, report)
	}
	for _, doc := range index.PropertyDocs {
		s.restoreDocument(doc, storageRoot, true, report)
	}
	s.restoreMisc(storageRoot, report)

	s.logger.Info("restore completed",
		zap.Bool("db_restored", report.DBRestored),
		zap.Int("teacher_docs_restored", report.TeacherDocsRestored),
		zap.Int("teacher_docs_missing", report.TeacherDocsMissing),
		zap.Int("property_docs_restored", report.PropertyDocsRestored),
		zap.Int("property_docs_missing", report.PropertyDocsMissing),
		zap.Int("misc_restored", report.MiscRestored),
		zap.Int("warnings", len(report.Warnings)))

	return report, nil
}

// restoreDocument copies one indexed document from the extracted archive back
// to its live blob path. asStored skips re-encryption: the archive bytes are
// already in their at-rest form.
func (s *RestoreService) restoreDocument(doc IndexedDocument, storageRoot string, asStored bool, report *models.RestoreReport) {
	teacherDoc := doc.Teacher != ""

	src := filepath.Join(storageRoot, filepath.FromSlash(doc.ArchivePath()))
	data, err := os.ReadFile(src)
	if err != nil {
		if teacherDoc {
			report.TeacherDocsMissing++
		} else {
			report.PropertyDocsMissing++
		}
		s.logger.Warn("document missing from archive",
			zap.String("blob", doc.BlobPath),
			zap.String("expected", doc.ArchivePath()))
		return
	}

	if teacherDoc && !asStored {
		encrypted, encErr := s.box.Encrypt(data)
		if encErr != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("re-encryption failed for %s, restored as plaintext", doc.BlobPath))
			s.logger.Warn("re-encryption failed, writing plaintext",
				zap.String("blob", doc.BlobPath), zap.Error(encErr))
		} else {
			data = []byte(encrypted)
		}
	}

	if _, err := s.blobs.Save(doc.BlobPath, data); err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("write failed for %s: %v", doc.BlobPath, err))
		return
	}
	if teacherDoc {
		report.TeacherDocsRestored++
	} else {
		report.PropertyDocsRestored++
	}
}

// restoreMisc copies everything under the archive's misc tree back onto the
// live store, preserving relative paths.
func (s *RestoreService) restoreMisc(storageRoot string, report *models.RestoreReport) {
	miscRoot := filepath.Join(storageRoot, archiveMiscDir)
	if _, err := os.Stat(miscRoot); err != nil {
		return
	}

	walkErr := filepath.WalkDir(miscRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(miscRoot, p)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("unreadable misc file %s: %v", rel, readErr))
			return nil
		}
		if _, saveErr := s.blobs.Save(filepath.ToSlash(rel), data); saveErr != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("write failed for misc file %s: %v", rel, saveErr))
			return nil
		}
		report.MiscRestored++
		return nil
	})
	if walkErr != nil {
		report.Warnings = append(report.Warnings, "misc tree walk failed: "+walkErr.Error())
	}
}

// extractArchive unpacks a zip into dest, rejecting entries that would escape
// it.
func extractArchive(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrArchive.Code, appErrors.ErrArchive.Status, "open archive")
	}
	defer reader.Close() //nolint:errcheck

	for _, file := range reader.File {
		name := path.Clean(file.Name)
		if name == "." || strings.HasPrefix(name, "..") || path.IsAbs(name) {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			continue
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "extract archive directory")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "extract archive directory")
		}
		if err := copyZipFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrArchive.Code, appErrors.ErrArchive.Status, "open archive entry")
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(target)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "extract archive entry")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, src); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "extract archive entry")
	}
	return out.Close()
}

// findDatabaseDump locates database.sql at the workspace root,
// case-insensitively.
func findDatabaseDump(workspace string) (string, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read restore workspace")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), databaseDumpEntry) {
			return filepath.Join(workspace, entry.Name()), nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrArchive, "archive does not contain database.sql")
}
