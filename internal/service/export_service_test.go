package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/storage"
)

type exportDocsStub struct{ docs []models.TeacherDocument }

func (s exportDocsStub) ListAll(ctx context.Context) ([]models.TeacherDocument, error) {
	return s.docs, nil
}

type exportPropsStub struct{ docs []models.PropertyDocument }

func (s exportPropsStub) ListAll(ctx context.Context) ([]models.PropertyDocument, error) {
	return s.docs, nil
}

type exportTeachersStub struct{ teachers []models.Teacher }

func (s exportTeachersStub) ListAll(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

type exportCategoriesStub struct{ categories []models.Category }

func (s exportCategoriesStub) List(ctx context.Context) ([]models.Category, error) {
	return s.categories, nil
}

func exportFixture(t *testing.T) *ExportService {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	catID := "c-pds"
	docs := exportDocsStub{docs: []models.TeacherDocument{{
		ID:         "d-1",
		TeacherID:  "t-1",
		CategoryID: &catID,
		Name:       "pds.pdf",
		MimeType:   "application/pdf",
		Size:       2048,
		CreatedAt:  time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}}}
	props := exportPropsStub{docs: []models.PropertyDocument{{
		ID:         "p-1",
		CategoryID: "c-ics",
		Name:       "ics_form.pdf",
		MimeType:   "application/pdf",
		Size:       1024,
		CreatedAt:  time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC),
	}}}
	teachers := exportTeachersStub{teachers: []models.Teacher{{ID: "t-1", FullName: "Juan Cruz"}}}
	categories := exportCategoriesStub{categories: []models.Category{
		{ID: "c-pds", Name: "Personal Data Sheet"},
		{ID: "c-ics", Name: "ICS"},
	}}

	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	return NewExportService(docs, props, teachers, categories, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
}

func TestExportGenerateInventoryCSV(t *testing.T) {
	svc := exportFixture(t)

	result, err := svc.Generate(context.Background(), models.ExportKindInventory, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))
	assert.Equal(t, models.ExportFormatCSV, result.Format)

	f, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer f.Close()

	raw, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "Document,Kind,Teacher,Category,Mime Type,Size (KB),Uploaded At")
	assert.Contains(t, body, "pds.pdf,teacher,Juan Cruz,Personal Data Sheet,application/pdf,2.0,")
	assert.Contains(t, body, "ics_form.pdf,property,,ICS,application/pdf,1.0,")
}

func TestExportGeneratePDF(t *testing.T) {
	svc := exportFixture(t)

	result, err := svc.Generate(context.Background(), models.ExportKindTeachers, models.ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))

	f, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer f.Close()

	header := make([]byte, 5)
	_, err = f.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(header))
}

func TestExportTokenRoundTrip(t *testing.T) {
	svc := exportFixture(t)

	result, err := svc.Generate(context.Background(), models.ExportKindProperty, models.ExportFormatCSV)
	require.NoError(t, err)

	kind, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, string(models.ExportKindProperty), kind)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportRejectsUnknownKindAndFormat(t *testing.T) {
	svc := exportFixture(t)

	_, err := svc.Generate(context.Background(), models.ExportKind("grades"), models.ExportFormatCSV)
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), models.ExportKindInventory, models.ExportFormat("xlsx"))
	require.Error(t, err)
}

func TestExportCleanupRemovesOldFiles(t *testing.T) {
	svc := exportFixture(t)

	result, err := svc.Generate(context.Background(), models.ExportKindInventory, models.ExportFormatCSV)
	require.NoError(t, err)

	removed, err := svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Contains(t, removed, result.RelativePath)

	_, err = svc.Open(result.RelativePath)
	require.Error(t, err)
}
