package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docunet-api/internal/models"
)

type indexDocStub struct{ docs []models.TeacherDocument }

func (s *indexDocStub) ListAll(context.Context) ([]models.TeacherDocument, error) {
	return s.docs, nil
}

type indexPropStub struct{ docs []models.PropertyDocument }

func (s *indexPropStub) ListAll(context.Context) ([]models.PropertyDocument, error) {
	return s.docs, nil
}

type indexTeacherStub struct{ teachers []models.Teacher }

func (s *indexTeacherStub) ListAll(context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

type indexCategoryStub struct{ categories []models.Category }

func (s *indexCategoryStub) List(context.Context) ([]models.Category, error) {
	return s.categories, nil
}

func testIndexer() *Indexer {
	catID := "c-pds"
	return NewIndexer(
		&indexDocStub{docs: []models.TeacherDocument{
			{ID: "d-1", TeacherID: "t-1", CategoryID: &catID, Name: "pds.pdf", Path: "documents/aaa.pdf"},
			{ID: "d-2", TeacherID: "t-missing", Name: "loose.pdf", Path: "documents/bbb.pdf"},
		}},
		&indexPropStub{docs: []models.PropertyDocument{
			{ID: "p-1", CategoryID: "c-ics", Name: "ics_form.pdf", Path: "documents/ccc.pdf"},
		}},
		&indexTeacherStub{teachers: []models.Teacher{
			{ID: "t-1", FullName: "Juan Cruz"},
		}},
		&indexCategoryStub{categories: []models.Category{
			{ID: "c-pds", Name: "Personal Data Sheet", RequiresTeacher: true},
			{ID: "c-ics", Name: "ICS"},
		}},
	)
}

func TestIndexerBuild(t *testing.T) {
	idx, err := testIndexer().Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	doc, ok := idx.Lookup("documents/aaa.pdf")
	require.True(t, ok)
	assert.Equal(t, "pds.pdf", doc.Name)
	assert.Equal(t, "Juan Cruz", doc.Teacher)
	assert.Equal(t, "Personal Data Sheet", doc.Category)
	assert.Equal(t, "teachers/Juan Cruz/Personal Data Sheet/pds.pdf", doc.ArchivePath())

	prop, ok := idx.Lookup("documents/ccc.pdf")
	require.True(t, ok)
	assert.Empty(t, prop.Teacher)
	assert.Equal(t, "property/ICS/ics_form.pdf", prop.ArchivePath())

	_, ok = idx.Lookup("previews/zzz.pdf")
	assert.False(t, ok)
}

func TestIndexerDanglingRefsUsePlaceholders(t *testing.T) {
	idx, err := testIndexer().Build(context.Background())
	require.NoError(t, err)

	doc, ok := idx.Lookup("documents/bbb.pdf")
	require.True(t, ok)
	// Missing teacher and category keep the entry in the teachers tree.
	assert.Equal(t, "unknown", doc.Teacher)
	assert.Equal(t, "teachers/unknown/unknown/loose.pdf", doc.ArchivePath())
}

func TestSegmentSafe(t *testing.T) {
	assert.Equal(t, "Juan Cruz", SegmentSafe("Juan Cruz"))
	assert.Equal(t, "unknown", SegmentSafe(""))
	assert.Equal(t, "unknown", SegmentSafe("  "))
	assert.Equal(t, "unknown", SegmentSafe(".."))
	assert.Equal(t, "a_b", SegmentSafe("a/b"))
	assert.Equal(t, "a_b", SegmentSafe(`a\b`))
	assert.Equal(t, "_etc_passwd", SegmentSafe("/etc/passwd"))
	assert.Equal(t, "report", SegmentSafe("report."))
}
