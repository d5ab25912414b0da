package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/models"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
	"github.com/noah-isme/docunet-api/pkg/export"
	"github.com/noah-isme/docunet-api/pkg/storage"
)

type exportDocumentSource interface {
	ListAll(ctx context.Context) ([]models.TeacherDocument, error)
}

type exportPropertySource interface {
	ListAll(ctx context.Context) ([]models.PropertyDocument, error)
}

type exportTeacherSource interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type exportCategorySource interface {
	List(ctx context.Context) ([]models.Category, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders document inventory listings to CSV or PDF and
// persists the result behind a signed download URL.
type ExportService struct {
	documents  exportDocumentSource
	properties exportPropertySource
	teachers   exportTeacherSource
	categories exportCategorySource
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(documents exportDocumentSource, properties exportPropertySource, teachers exportTeacherSource, categories exportCategorySource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		documents:  documents,
		properties: properties,
		teachers:   teachers,
		categories: categories,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the requested inventory dataset and stores the rendered
// file.
func (s *ExportService) Generate(ctx context.Context, kind models.ExportKind, format models.ExportFormat) (*ExportResult, error) {
	dataset, title, err := s.buildDataset(ctx, kind)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}

	filename := s.buildFilename(kind, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store export")
	}

	token, expiresAt, err := s.signer.Generate(string(kind), relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign export url")
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/%s", signedURL, token)

	s.logger.Info("export generated",
		zap.String("kind", string(kind)),
		zap.String("format", string(format)),
		zap.String("path", relPath))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (kind, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(kind models.ExportKind, format models.ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", kind, timestamp, format)
}

func (s *ExportService) buildDataset(ctx context.Context, kind models.ExportKind) (export.Dataset, string, error) {
	switch kind {
	case models.ExportKindTeachers:
		return s.buildTeacherDataset(ctx)
	case models.ExportKindProperty:
		return s.buildPropertyDataset(ctx)
	case models.ExportKindInventory:
		return s.buildCombinedDataset(ctx)
	default:
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export kind %s", kind))
	}
}

var inventoryHeaders = []string{"Document", "Kind", "Teacher", "Category", "Mime Type", "Size (KB)", "Uploaded At"}

func (s *ExportService) buildTeacherDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, err := s.teacherRows(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	return export.Dataset{Headers: inventoryHeaders, Rows: rows}, "Teacher Document Inventory", nil
}

func (s *ExportService) buildPropertyDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, err := s.propertyRows(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	return export.Dataset{Headers: inventoryHeaders, Rows: rows}, "School Property Inventory", nil
}

func (s *ExportService) buildCombinedDataset(ctx context.Context) (export.Dataset, string, error) {
	teacherRows, err := s.teacherRows(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	propertyRows, err := s.propertyRows(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	return export.Dataset{
		Headers: inventoryHeaders,
		Rows:    append(teacherRows, propertyRows...),
	}, "Document Inventory", nil
}

func (s *ExportService) teacherRows(ctx context.Context) ([]map[string]string, error) {
	docs, err := s.documents.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list teacher documents")
	}
	teacherNames, categoryNames, err := s.nameLookups(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		category := ""
		if doc.CategoryID != nil {
			category = categoryNames[*doc.CategoryID]
		}
		rows = append(rows, map[string]string{
			"Document":    doc.Name,
			"Kind":        string(models.DocumentKindTeacher),
			"Teacher":     teacherNames[doc.TeacherID],
			"Category":    category,
			"Mime Type":   doc.MimeType,
			"Size (KB)":   fmt.Sprintf("%.1f", float64(doc.Size)/1024),
			"Uploaded At": doc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}

func (s *ExportService) propertyRows(ctx context.Context) ([]map[string]string, error) {
	docs, err := s.properties.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list property documents")
	}
	_, categoryNames, err := s.nameLookups(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, map[string]string{
			"Document":    doc.Name,
			"Kind":        string(models.DocumentKindProperty),
			"Teacher":     "",
			"Category":    categoryNames[doc.CategoryID],
			"Mime Type":   doc.MimeType,
			"Size (KB)":   fmt.Sprintf("%.1f", float64(doc.Size)/1024),
			"Uploaded At": doc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}

func (s *ExportService) nameLookups(ctx context.Context) (map[string]string, map[string]string, error) {
	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list teachers")
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list categories")
	}

	teacherNames := make(map[string]string, len(teachers))
	for _, teacher := range teachers {
		teacherNames[teacher.ID] = teacher.FullName
	}
	categoryNames := make(map[string]string, len(categories))
	for _, category := range categories {
		categoryNames[category.ID] = category.Name
	}
	return teacherNames, categoryNames, nil
}
