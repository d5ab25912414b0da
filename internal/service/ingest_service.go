package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

type ingestDocumentStore interface {
	Create(ctx context.Context, doc *models.TeacherDocument) error
	FindByTeacherCategory(ctx context.Context, teacherID string, categoryID *string) (*models.TeacherDocument, error)
	ListNamesByTeacherCategory(ctx context.Context, teacherID string, categoryID *string) ([]string, error)
}

type ingestPropertyStore interface {
	Create(ctx context.Context, doc *models.PropertyDocument) error
	ListNamesByCategory(ctx context.Context, categoryID string) ([]string, error)
}

type ingestTeacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ListActive(ctx context.Context) ([]models.Teacher, error)
}

type ingestCategoryStore interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
}

type blobStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
	Path(filename string) string
}

type ocrScanner interface {
	ExtractAndClassify(ctx context.Context, filename string, contents []byte) (*ScanResult, error)
}

type previewConverter interface {
	CanConvert(extension string) bool
	Convert(ctx context.Context, inputPath string) (string, error)
}

// ScanCache stores OCR scan results keyed by content hash.
type ScanCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type ingestMetrics interface {
	ObserveIngest(kind string)
	ObserveOCRFailure()
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// previewExtensions are served as a decrypted copy without conversion.
var previewExtensions = map[string]struct{}{
	"pdf": {}, "png": {}, "jpg": {}, "jpeg": {},
}

// ConflictError names the existing document that blocked an ingest.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return "conflicts with existing document " + e.Name
}

// IngestInput carries one uploaded file plus resolution hints.
type IngestInput struct {
	FileName   string
	Contents   []byte
	MimeType   string
	TeacherID  *string
	CategoryID *string
	UploaderID string
}

// IngestOptions tunes a single ingest.
type IngestOptions struct {
	// AllowDuplicate bypasses the (teacher, category) duplicate gate.
	AllowDuplicate bool
	// SkipOCR suppresses the remote classification call.
	SkipOCR bool
	// PrecomputedText substitutes for remote extraction when already known.
	PrecomputedText string
}

// IngestConfig holds the storage subtree names.
type IngestConfig struct {
	DocumentsDir string
	PreviewsDir  string
	OCRCacheTTL  time.Duration
}

// IngestService orchestrates a document upload: encryption at rest, preview
// generation, best-effort remote classification, teacher/category resolution,
// duplicate gating, collision-safe naming and persistence.
type IngestService struct {
	documents  ingestDocumentStore
	properties ingestPropertyStore
	teachers   ingestTeacherStore
	categories ingestCategoryStore
	storage    blobStorage
	box        *cryptobox.Box
	classifier *Classifier
	matcher    *NameMatcher
	ocr        ocrScanner
	converter  previewConverter
	cache      ScanCache
	metrics    ingestMetrics
	logger     *zap.Logger
	cfg        IngestConfig
}

// NewIngestService constructs the service. ocr, converter, cache and metrics
// may be nil; the corresponding step degrades to a no-op.
func NewIngestService(
	documents ingestDocumentStore,
	properties ingestPropertyStore,
	teachers ingestTeacherStore,
	categories ingestCategoryStore,
	storage blobStorage,
	box *cryptobox.Box,
	classifier *Classifier,
	matcher *NameMatcher,
	ocr ocrScanner,
	converter previewConverter,
	cache ScanCache,
	metrics ingestMetrics,
	logger *zap.Logger,
	cfg IngestConfig,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	if matcher == nil {
		matcher = NewNameMatcher()
	}
	if cfg.DocumentsDir == "" {
		cfg.DocumentsDir = "documents"
	}
	if cfg.PreviewsDir == "" {
		cfg.PreviewsDir = "previews"
	}
	if cfg.OCRCacheTTL <= 0 {
		cfg.OCRCacheTTL = 24 * time.Hour
	}
	return &IngestService{
		documents:  documents,
		properties: properties,
		teachers:   teachers,
		categories: categories,
		storage:    storage,
		box:        box,
		classifier: classifier,
		matcher:    matcher,
		ocr:        ocr,
		converter:  converter,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Ingest processes one uploaded file and persists either a teacher document
// or a property document, reported as a tagged record.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput, opts IngestOptions) (*models.DocumentRecord, error) {
	if input.FileName == "" || len(input.Contents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name and contents are required")
	}
	if input.UploaderID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploader is required")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.FileName), "."))

	// Encrypt and persist the blob under a fresh random path. Existing blobs
	// are never overwritten.
	encrypted, err := s.box.Encrypt(input.Contents)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encrypt upload")
	}
	blobPath := s.freshBlobPath(ext)
	if _, err := s.storage.Save(blobPath, []byte(encrypted)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store encrypted blob")
	}

	// Decrypt back from the stored blob into a scoped temp file for the
	// converter and the OCR call. Round-tripping through the store catches a
	// miswired key immediately instead of at restore time.
	stored, err := s.storage.Read(blobPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read back stored blob")
	}
	plain, err := s.box.Decrypt(string(stored))
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "docunet-decrypted-*."+ext)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck
	if _, err := tmp.Write(plain); err != nil {
		tmp.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "close temp file")
	}

	previewPath := s.buildPreview(ctx, ext, blobPath, plain, tmpPath)

	teacherID := input.TeacherID
	categoryID := input.CategoryID

	// Best-effort classification; any failure leaves both fields empty and
	// the ingest continues.
	ocrText, rawLabel := s.classify(ctx, input, opts, teacherID, categoryID, plain)

	canonical := s.classifier.Canonical(rawLabel)
	if canonical == "" {
		canonical = s.classifier.Categorize(ocrText, input.FileName)
	}

	category, err := s.resolveCategory(ctx, categoryID, canonical)
	if err != nil {
		return nil, err
	}

	var extracted *string
	if ocrText != "" {
		extracted = &ocrText
	}

	if category != nil && !category.RequiresTeacher {
		return s.persistProperty(ctx, input, category, blobPath, previewPath, extracted)
	}

	if teacherID == nil {
		teacherID, err = s.detectTeacher(ctx, ocrText)
		if err != nil {
			return nil, err
		}
	}
	if teacherID == nil {
		return nil, appErrors.ErrTeacherRequired
	}

	return s.persistTeacherDoc(ctx, input, *teacherID, category, blobPath, previewPath, extracted, opts.AllowDuplicate)
}

func (s *IngestService) freshBlobPath(ext string) string {
	for {
		name := uuid.NewString()
		if ext != "" {
			name += "." + ext
		}
		blobPath := s.cfg.DocumentsDir + "/" + name
		if !s.storage.Exists(blobPath) {
			return blobPath
		}
	}
}

// buildPreview produces a viewable copy of the encrypted blob: office formats
// go through the external converter, PDFs and images get a decrypted copy.
// Failure means no preview, never a failed ingest.
func (s *IngestService) buildPreview(ctx context.Context, ext, blobPath string, plain []byte, tmpPath string) *string {
	base := strings.TrimSuffix(filepath.Base(blobPath), filepath.Ext(blobPath))

	if s.converter != nil && s.converter.CanConvert(ext) {
		produced, err := s.converter.Convert(ctx, tmpPath)
		if err != nil || produced == "" {
			if err != nil {
				s.logger.Warn("preview conversion failed", zap.String("blob", blobPath), zap.Error(err))
			}
			return nil
		}
		pdfBytes, err := os.ReadFile(produced)
		defer os.Remove(produced) //nolint:errcheck
		if err != nil {
			s.logger.Warn("read converted preview failed", zap.String("blob", blobPath), zap.Error(err))
			return nil
		}
		rel := s.cfg.PreviewsDir + "/" + base + ".pdf"
		if _, err := s.storage.Save(rel, pdfBytes); err != nil {
			s.logger.Warn("store converted preview failed", zap.String("blob", blobPath), zap.Error(err))
			return nil
		}
		return &rel
	}

	if _, ok := previewExtensions[ext]; ok {
		rel := s.cfg.PreviewsDir + "/" + filepath.Base(blobPath)
		if _, err := s.storage.Save(rel, plain); err != nil {
			s.logger.Warn("store preview copy failed", zap.String("blob", blobPath), zap.Error(err))
			return nil
		}
		return &rel
	}

	return nil
}

func (s *IngestService) classify(ctx context.Context, input IngestInput, opts IngestOptions, teacherID, categoryID *string, plain []byte) (string, string) {
	if opts.PrecomputedText != "" {
		return opts.PrecomputedText, ""
	}
	if opts.SkipOCR || (teacherID != nil && categoryID != nil) {
		return "", ""
	}

	cacheKey := "ocr:" + contentHash(plain)
	if s.cache != nil {
		var cached ScanResult
		start := time.Now()
		err := s.cache.Get(ctx, cacheKey, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		}
		if err == nil {
			return cached.Text, cached.Subcategory
		}
	}

	if s.ocr == nil {
		return "", ""
	}
	result, err := s.ocr.ExtractAndClassify(ctx, input.FileName, plain)
	if err != nil {
		s.logger.Warn("ocr classification unavailable", zap.String("file", input.FileName), zap.Error(err))
		if s.metrics != nil {
			s.metrics.ObserveOCRFailure()
		}
		return "", ""
	}
	s.logger.Info("ocr classification succeeded",
		zap.String("file", input.FileName),
		zap.String("subcategory", result.Subcategory))
	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, cacheKey, result, s.cfg.OCRCacheTTL); err != nil {
			s.logger.Warn("cache ocr result failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.ObserveCacheWrite(time.Since(start))
		}
	}
	return result.Text, result.Subcategory
}

func (s *IngestService) resolveCategory(ctx context.Context, categoryID *string, canonical string) (*models.Category, error) {
	if categoryID != nil {
		category, err := s.categories.FindByID(ctx, *categoryID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown category")
		}
		return category, nil
	}
	if canonical == "" {
		return nil, nil
	}
	category, err := s.categories.FindByName(ctx, canonical)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve category")
	}
	return category, nil
}

// detectTeacher scans every known teacher's name permutations over the
// extracted text; the first confident match wins.
func (s *IngestService) detectTeacher(ctx context.Context, ocrText string) (*string, error) {
	if ocrText == "" {
		return nil, nil
	}
	teachers, err := s.teachers.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list teachers")
	}
	for _, teacher := range teachers {
		for _, name := range teacher.NamePermutations() {
			if s.matcher.IsMatch(name, ocrText) {
				s.logger.Info("teacher auto-detected",
					zap.String("teacher", teacher.FullName),
					zap.String("teacher_id", teacher.ID))
				id := teacher.ID
				return &id, nil
			}
		}
	}
	return nil, nil
}

func (s *IngestService) persistProperty(ctx context.Context, input IngestInput, category *models.Category, blobPath string, previewPath, extracted *string) (*models.DocumentRecord, error) {
	// Property documents are stored unencrypted at rest; replace the blob
	// written in step one with the plaintext bytes.
	if _, err := s.storage.Save(blobPath, input.Contents); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store property blob")
	}

	names, err := s.properties.ListNamesByCategory(ctx, category.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list property names")
	}

	doc := &models.PropertyDocument{
		UserID:        input.UploaderID,
		CategoryID:    category.ID,
		PropertyType:  category.Name,
		Name:          ResolveName(input.FileName, names),
		Path:          blobPath,
		MimeType:      input.MimeType,
		Size:          int64(len(input.Contents)),
		PreviewPath:   previewPath,
		ExtractedText: extracted,
	}
	if err := s.properties.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist property document")
	}
	if s.metrics != nil {
		s.metrics.ObserveIngest(string(models.DocumentKindProperty))
	}
	return &models.DocumentRecord{Kind: models.DocumentKindProperty, Property: doc}, nil
}

func (s *IngestService) persistTeacherDoc(ctx context.Context, input IngestInput, teacherID string, category *models.Category, blobPath string, previewPath, extracted *string, allowDuplicate bool) (*models.DocumentRecord, error) {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown teacher")
	}

	var categoryID *string
	if category != nil {
		categoryID = &category.ID
	}

	existing, err := s.documents.FindByTeacherCategory(ctx, teacherID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check duplicates")
	}
	if existing != nil && !allowDuplicate {
		return nil, appErrors.Wrap(&ConflictError{Name: existing.Name},
			appErrors.ErrDuplicate.Code, appErrors.ErrDuplicate.Status,
			fmt.Sprintf("a document already exists for this teacher and category: %s", existing.Name))
	}

	names, err := s.documents.ListNamesByTeacherCategory(ctx, teacherID, categoryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list document names")
	}

	doc := &models.TeacherDocument{
		UserID:        input.UploaderID,
		TeacherID:     teacherID,
		CategoryID:    categoryID,
		Name:          ResolveName(input.FileName, names),
		Path:          blobPath,
		MimeType:      input.MimeType,
		Size:          int64(len(input.Contents)),
		PreviewPath:   previewPath,
		ExtractedText: extracted,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist teacher document")
	}
	if s.metrics != nil {
		s.metrics.ObserveIngest(string(models.DocumentKindTeacher))
	}
	return &models.DocumentRecord{Kind: models.DocumentKindTeacher, Teacher: doc}, nil
}

// Scan runs detection only: extracted text, matched teacher and category for
// a file that is not persisted.
func (s *IngestService) Scan(ctx context.Context, filename string, contents []byte) (teacherName, categoryName string, belongsToTeacher bool, err error) {
	if len(contents) == 0 {
		return "", "", false, appErrors.Clone(appErrors.ErrValidation, "file contents are required")
	}

	text := ""
	label := ""
	if s.ocr != nil {
		result, ocrErr := s.ocr.ExtractAndClassify(ctx, filename, contents)
		if ocrErr != nil {
			s.logger.Warn("scan ocr unavailable", zap.String("file", filename), zap.Error(ocrErr))
			if s.metrics != nil {
				s.metrics.ObserveOCRFailure()
			}
		} else {
			text, label = result.Text, result.Subcategory
		}
	}

	categoryName = s.classifier.Canonical(label)
	if categoryName == "" {
		categoryName = s.classifier.Categorize(text, filename)
	}
	if categoryName != "" {
		belongsToTeacher = !s.classifier.IsPropertyCategory(categoryName)
	}

	if text != "" {
		teachers, listErr := s.teachers.ListActive(ctx)
		if listErr != nil {
			return "", "", false, appErrors.Wrap(listErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list teachers")
		}
		for _, teacher := range teachers {
			for _, name := range teacher.NamePermutations() {
				if s.matcher.IsMatch(name, text) {
					teacherName = teacher.FullName
					break
				}
			}
			if teacherName != "" {
				break
			}
		}
	}

	return teacherName, categoryName, belongsToTeacher, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
