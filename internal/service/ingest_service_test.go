package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

type stubDocumentStore struct {
	created  []*models.TeacherDocument
	existing *models.TeacherDocument
	names    []string
}

func (s *stubDocumentStore) Create(_ context.Context, doc *models.TeacherDocument) error {
	doc.ID = "doc-1"
	s.created = append(s.created, doc)
	return nil
}

func (s *stubDocumentStore) FindByTeacherCategory(_ context.Context, _ string, _ *string) (*models.TeacherDocument, error) {
	return s.existing, nil
}

func (s *stubDocumentStore) ListNamesByTeacherCategory(_ context.Context, _ string, _ *string) ([]string, error) {
	return s.names, nil
}

type stubPropertyStore struct {
	created []*models.PropertyDocument
	names   []string
}

func (s *stubPropertyStore) Create(_ context.Context, doc *models.PropertyDocument) error {
	doc.ID = "prop-1"
	s.created = append(s.created, doc)
	return nil
}

func (s *stubPropertyStore) ListNamesByCategory(_ context.Context, _ string) ([]string, error) {
	return s.names, nil
}

type stubTeacherStore struct {
	teachers map[string]*models.Teacher
	active   []models.Teacher
}

func (s *stubTeacherStore) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if t, ok := s.teachers[id]; ok {
		return t, nil
	}
	return nil, errors.New("teacher not found")
}

func (s *stubTeacherStore) ListActive(_ context.Context) ([]models.Teacher, error) {
	return s.active, nil
}

type stubCategoryStore struct {
	byID   map[string]*models.Category
	byName map[string]*models.Category
}

func (s *stubCategoryStore) FindByID(_ context.Context, id string) (*models.Category, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, errors.New("category not found")
}

func (s *stubCategoryStore) FindByName(_ context.Context, name string) (*models.Category, error) {
	if c, ok := s.byName[name]; ok {
		return c, nil
	}
	return nil, nil
}

type memoryStorage struct {
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[filename] = cp
	return filename, nil
}

func (m *memoryStorage) Read(filename string) ([]byte, error) {
	data, ok := m.files[filename]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memoryStorage) Exists(filename string) bool {
	_, ok := m.files[filename]
	return ok
}

func (m *memoryStorage) Path(filename string) string {
	return "/dev/null/" + filename
}

type stubOCR struct {
	result *ScanResult
	err    error
	calls  int
}

func (s *stubOCR) ExtractAndClassify(_ context.Context, _ string, _ []byte) (*ScanResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func ingestTestKey(t *testing.T) *cryptobox.Box {
	t.Helper()
	box, err := cryptobox.New([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	return box
}

func ingestFixture(t *testing.T) (*IngestService, *stubDocumentStore, *stubPropertyStore, *memoryStorage, *stubOCR) {
	t.Helper()
	docs := &stubDocumentStore{}
	props := &stubPropertyStore{}
	teachers := &stubTeacherStore{
		teachers: map[string]*models.Teacher{
			"t-1": {ID: "t-1", FirstName: "Juan", LastName: "Cruz", FullName: "Juan Cruz", Active: true},
		},
		active: []models.Teacher{
			{ID: "t-1", FirstName: "Juan", LastName: "Cruz", FullName: "Juan Cruz", Active: true},
			{ID: "t-2", FirstName: "Maria", LastName: "Santos", FullName: "Maria Santos", Active: true},
		},
	}
	categories := &stubCategoryStore{
		byID: map[string]*models.Category{
			"c-pds": {ID: "c-pds", Name: "Personal Data Sheet", RequiresTeacher: true},
			"c-ics": {ID: "c-ics", Name: "ICS", RequiresTeacher: false},
		},
		byName: map[string]*models.Category{
			"Personal Data Sheet": {ID: "c-pds", Name: "Personal Data Sheet", RequiresTeacher: true},
			"ICS":                 {ID: "c-ics", Name: "ICS", RequiresTeacher: false},
		},
	}
	store := newMemoryStorage()
	ocr := &stubOCR{}

	svc := NewIngestService(docs, props, teachers, categories, store, ingestTestKey(t),
		NewClassifier(), NewNameMatcher(), ocr, nil, nil, nil, nil, IngestConfig{})
	return svc, docs, props, store, ocr
}

func strPtr(s string) *string { return &s }

func TestIngestTeacherDocument(t *testing.T) {
	svc, docs, _, store, _ := ingestFixture(t)

	record, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "pds.pdf",
		Contents:   []byte("plaintext document body"),
		MimeType:   "application/pdf",
		TeacherID:  strPtr("t-1"),
		CategoryID: strPtr("c-pds"),
		UploaderID: "u-1",
	}, IngestOptions{SkipOCR: true})
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, models.DocumentKindTeacher, record.Kind)

	doc := record.Teacher
	require.Len(t, docs.created, 1)
	assert.Equal(t, "pds.pdf", doc.Name)
	assert.Equal(t, "t-1", doc.TeacherID)
	require.NotNil(t, doc.CategoryID)
	assert.Equal(t, "c-pds", *doc.CategoryID)
	assert.Equal(t, int64(len("plaintext document body")), doc.Size)

	// The blob at rest is encrypted but round-trips back to the plaintext.
	stored, err := store.Read(doc.Path)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("plaintext document body"), stored)
	box := ingestTestKey(t)
	plain, err := box.Decrypt(string(stored))
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext document body"), plain)

	// PDFs get a decrypted preview copy.
	require.NotNil(t, doc.PreviewPath)
	preview, err := store.Read(*doc.PreviewPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext document body"), preview)
}

func TestIngestDuplicateGate(t *testing.T) {
	svc, docs, _, _, _ := ingestFixture(t)
	docs.existing = &models.TeacherDocument{ID: "old", Name: "pds.pdf"}

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "pds.pdf",
		Contents:   []byte("body"),
		TeacherID:  strPtr("t-1"),
		CategoryID: strPtr("c-pds"),
		UploaderID: "u-1",
	}, IngestOptions{SkipOCR: true})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicate))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "pds.pdf", conflict.Name)
	assert.Empty(t, docs.created)
}

func TestIngestAllowDuplicateResolvesCollision(t *testing.T) {
	svc, docs, _, _, _ := ingestFixture(t)
	docs.existing = &models.TeacherDocument{ID: "old", Name: "pds.pdf"}
	docs.names = []string{"pds.pdf", "pds (1).pdf"}

	record, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "pds.pdf",
		Contents:   []byte("body"),
		TeacherID:  strPtr("t-1"),
		CategoryID: strPtr("c-pds"),
		UploaderID: "u-1",
	}, IngestOptions{SkipOCR: true, AllowDuplicate: true})
	require.NoError(t, err)
	assert.Equal(t, "pds (2).pdf", record.Teacher.Name)
}

func TestIngestPropertyDocumentStoredPlaintext(t *testing.T) {
	svc, _, props, store, _ := ingestFixture(t)

	record, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "ics_form.pdf",
		Contents:   []byte("inventory custodian slip contents"),
		CategoryID: strPtr("c-ics"),
		UploaderID: "u-1",
	}, IngestOptions{SkipOCR: true})
	require.NoError(t, err)
	require.Equal(t, models.DocumentKindProperty, record.Kind)

	doc := record.Property
	require.Len(t, props.created, 1)
	assert.Equal(t, "c-ics", doc.CategoryID)
	assert.Equal(t, "ICS", doc.PropertyType)

	// Property documents are not encrypted at rest.
	stored, err := store.Read(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("inventory custodian slip contents"), stored)
}

func TestIngestDetectsTeacherFromText(t *testing.T) {
	svc, docs, _, _, ocr := ingestFixture(t)
	ocr.result = &ScanResult{
		Text:        "PERSONAL DATA SHEET of JUAN CRUZ, Teacher I",
		Subcategory: "pds",
	}

	record, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "scan001.pdf",
		Contents:   []byte("body"),
		UploaderID: "u-1",
	}, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, docs.created, 1)
	assert.Equal(t, "t-1", record.Teacher.TeacherID)
	require.NotNil(t, record.Teacher.CategoryID)
	assert.Equal(t, "c-pds", *record.Teacher.CategoryID)
	require.NotNil(t, record.Teacher.ExtractedText)
	assert.Contains(t, *record.Teacher.ExtractedText, "JUAN CRUZ")
}

func TestIngestTeacherRequired(t *testing.T) {
	svc, _, _, _, ocr := ingestFixture(t)
	ocr.result = &ScanResult{Text: "an unattributable page", Subcategory: ""}

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "mystery.pdf",
		Contents:   []byte("body"),
		UploaderID: "u-1",
	}, IngestOptions{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrTeacherRequired))
}

func TestIngestOCRFailureIsNonFatal(t *testing.T) {
	svc, docs, _, _, ocr := ingestFixture(t)
	ocr.err = errors.New("connection refused")

	record, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "report.pdf",
		Contents:   []byte("body"),
		TeacherID:  strPtr("t-1"),
		UploaderID: "u-1",
	}, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, docs.created, 1)
	assert.Nil(t, record.Teacher.CategoryID)
	assert.Equal(t, 1, ocr.calls)
}

type memoryScanCache struct {
	entries map[string][]byte
}

func (m *memoryScanCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryScanCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

type recordingIngestMetrics struct {
	ingests     []string
	ocrFailures int
	cacheOps    []bool
	cacheWrites int
}

func (m *recordingIngestMetrics) ObserveIngest(kind string) { m.ingests = append(m.ingests, kind) }
func (m *recordingIngestMetrics) ObserveOCRFailure()        { m.ocrFailures++ }
func (m *recordingIngestMetrics) RecordCacheOperation(hit bool, _ time.Duration) {
	m.cacheOps = append(m.cacheOps, hit)
}
func (m *recordingIngestMetrics) ObserveCacheWrite(_ time.Duration) { m.cacheWrites++ }

func TestIngestRecordsCacheMetrics(t *testing.T) {
	svc, _, _, _, ocr := ingestFixture(t)
	ocr.result = &ScanResult{Text: "PERSONAL DATA SHEET of JUAN CRUZ", Subcategory: "pds"}
	metrics := &recordingIngestMetrics{}
	svc.cache = &memoryScanCache{entries: map[string][]byte{}}
	svc.metrics = metrics

	_, err := svc.Ingest(context.Background(), IngestInput{
		FileName:   "scan001.pdf",
		Contents:   []byte("body"),
		UploaderID: "u-1",
	}, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, []bool{false}, metrics.cacheOps)
	assert.Equal(t, 1, metrics.cacheWrites)

	// Same bytes again: the cached scan result is served, OCR is not called.
	_, err = svc.Ingest(context.Background(), IngestInput{
		FileName:   "scan002.pdf",
		Contents:   []byte("body"),
		UploaderID: "u-1",
	}, IngestOptions{AllowDuplicate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, []bool{false, true}, metrics.cacheOps)
	assert.Equal(t, 1, metrics.cacheWrites)
}

func TestIngestValidation(t *testing.T) {
	svc, _, _, _, _ := ingestFixture(t)

	_, err := svc.Ingest(context.Background(), IngestInput{UploaderID: "u-1"}, IngestOptions{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Ingest(context.Background(), IngestInput{FileName: "a.pdf", Contents: []byte("x")}, IngestOptions{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestScanReportsDetection(t *testing.T) {
	svc, _, _, _, ocr := ingestFixture(t)
	ocr.result = &ScanResult{
		Text:        "DAILY TIME RECORD Maria Santos",
		Subcategory: "dtr",
	}

	teacher, category, belongsToTeacher, err := svc.Scan(context.Background(), "dtr.pdf", []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", teacher)
	assert.Equal(t, "Daily Time Record", category)
	assert.True(t, belongsToTeacher)
}

func TestScanPropertyCategory(t *testing.T) {
	svc, _, _, _, ocr := ingestFixture(t)
	ocr.result = &ScanResult{Text: "INVENTORY CUSTODIAN SLIP", Subcategory: ""}

	teacher, category, belongsToTeacher, err := svc.Scan(context.Background(), "ics.pdf", []byte("body"))
	require.NoError(t, err)
	assert.Empty(t, teacher)
	assert.Equal(t, "ICS", category)
	assert.False(t, belongsToTeacher)
}
