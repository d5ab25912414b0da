package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/noah-isme/docunet-api/internal/models"
)

// Archive layout roots. The folder structure is a derived presentation of DB
// state, recomputed on every build and restore; it is never treated as
// authoritative metadata.
const (
	archiveStorageRoot = "storage_public"
	archiveTeachersDir = "teachers"
	archivePropertyDir = "property"
	archiveMiscDir     = "misc"
)

// IndexedDocument maps one stored blob to its organizing metadata.
type IndexedDocument struct {
	BlobPath string
	Name     string
	Category string
	// Teacher is empty for property documents.
	Teacher string
}

// ArchivePath returns the document's organized location inside an archive,
// relative to the storage root entry.
func (d IndexedDocument) ArchivePath() string {
	if d.Teacher != "" {
		return path.Join(archiveTeachersDir, SegmentSafe(d.Teacher), SegmentSafe(d.Category), SegmentSafe(d.Name))
	}
	return path.Join(archivePropertyDir, SegmentSafe(d.Category), SegmentSafe(d.Name))
}

// MetadataIndex is the blob-path lookup built from persisted records.
type MetadataIndex struct {
	TeacherDocs  []IndexedDocument
	PropertyDocs []IndexedDocument
	byPath       map[string]IndexedDocument
}

// Lookup resolves a blob path to its index entry.
func (idx *MetadataIndex) Lookup(blobPath string) (IndexedDocument, bool) {
	doc, ok := idx.byPath[blobPath]
	return doc, ok
}

// Len returns the number of indexed documents.
func (idx *MetadataIndex) Len() int {
	return len(idx.byPath)
}

type indexDocumentLister interface {
	ListAll(ctx context.Context) ([]models.TeacherDocument, error)
}

type indexPropertyLister interface {
	ListAll(ctx context.Context) ([]models.PropertyDocument, error)
}

type indexTeacherLister interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type indexCategoryLister interface {
	List(ctx context.Context) ([]models.Category, error)
}

// Indexer builds MetadataIndex values from the relational store.
type Indexer struct {
	documents  indexDocumentLister
	properties indexPropertyLister
	teachers   indexTeacherLister
	categories indexCategoryLister
}

// NewIndexer constructs an Indexer.
func NewIndexer(documents indexDocumentLister, properties indexPropertyLister, teachers indexTeacherLister, categories indexCategoryLister) *Indexer {
	return &Indexer{
		documents:  documents,
		properties: properties,
		teachers:   teachers,
		categories: categories,
	}
}

// Build reads the current DB state and maps every blob path to its display
// name, category and teacher.
func (ix *Indexer) Build(ctx context.Context) (*MetadataIndex, error) {
	teachers, err := ix.teachers.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("index teachers: %w", err)
	}
	teacherNames := make(map[string]string, len(teachers))
	for _, t := range teachers {
		teacherNames[t.ID] = t.FullName
	}

	categories, err := ix.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("index categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	idx := &MetadataIndex{byPath: make(map[string]IndexedDocument)}

	docs, err := ix.documents.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("index documents: %w", err)
	}
	for _, doc := range docs {
		category := ""
		if doc.CategoryID != nil {
			category = categoryNames[*doc.CategoryID]
		}
		// A dangling teacher ref must not demote the entry to the property
		// layout; it stays in the teachers tree under a placeholder.
		teacher := teacherNames[doc.TeacherID]
		if teacher == "" {
			teacher = "unknown"
		}
		entry := IndexedDocument{
			BlobPath: doc.Path,
			Name:     doc.Name,
			Category: category,
			Teacher:  teacher,
		}
		idx.TeacherDocs = append(idx.TeacherDocs, entry)
		idx.byPath[doc.Path] = entry
	}

	props, err := ix.properties.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("index property documents: %w", err)
	}
	for _, doc := range props {
		entry := IndexedDocument{
			BlobPath: doc.Path,
			Name:     doc.Name,
			Category: categoryNames[doc.CategoryID],
		}
		idx.PropertyDocs = append(idx.PropertyDocs, entry)
		idx.byPath[doc.Path] = entry
	}

	return idx, nil
}

var segmentReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SegmentSafe sanitizes one archive path segment: traversal characters are
// replaced and an empty result falls back to a placeholder.
func SegmentSafe(segment string) string {
	cleaned := segmentReplacer.Replace(strings.TrimSpace(segment))
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
