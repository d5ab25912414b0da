package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

type documentReader interface {
	GetByID(ctx context.Context, id string) (*models.TeacherDocument, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.TeacherDocument, int, error)
	Delete(ctx context.Context, id string) error
}

type propertyReader interface {
	GetByID(ctx context.Context, id string) (*models.PropertyDocument, error)
	ListAll(ctx context.Context) ([]models.PropertyDocument, error)
	Delete(ctx context.Context, id string) error
}

type documentBlobStore interface {
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
	Delete(filename string) error
}

// DocumentService serves persisted document records and their decrypted
// contents.
type DocumentService struct {
	documents  documentReader
	properties propertyReader
	blobs      documentBlobStore
	box        *cryptobox.Box
	logger     *zap.Logger
}

func NewDocumentService(documents documentReader, properties propertyReader, blobs documentBlobStore, box *cryptobox.Box, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		documents:  documents,
		properties: properties,
		blobs:      blobs,
		box:        box,
		logger:     logger,
	}
}

// List returns teacher documents matching the filter plus the total count.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.TeacherDocument, int, error) {
	docs, total, err := s.documents.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list documents")
	}
	return docs, total, nil
}

// ListProperty returns all property documents.
func (s *DocumentService) ListProperty(ctx context.Context) ([]models.PropertyDocument, error) {
	docs, err := s.properties.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list property documents")
	}
	return docs, nil
}

// Get returns one teacher document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.TeacherDocument, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
	}
	return doc, nil
}

// GetProperty returns one property document by id.
func (s *DocumentService) GetProperty(ctx context.Context, id string) (*models.PropertyDocument, error) {
	doc, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
	}
	return doc, nil
}

// OpenContents returns the decrypted bytes of a teacher document. Blobs that
// fail to decrypt are assumed to predate encryption and are returned as-is.
func (s *DocumentService) OpenContents(ctx context.Context, id string) (*models.TeacherDocument, []byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.blobs.Read(doc.Path)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file missing")
	}
	plain, err := s.box.Decrypt(string(raw))
	if err != nil {
		s.logger.Warn("blob not decryptable, serving as stored",
			zap.String("document_id", id), zap.Error(err))
		return doc, raw, nil
	}
	return doc, plain, nil
}

// OpenPropertyContents returns the stored bytes of a property document, which
// are plaintext at rest.
func (s *DocumentService) OpenPropertyContents(ctx context.Context, id string) (*models.PropertyDocument, []byte, error) {
	doc, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.blobs.Read(doc.Path)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file missing")
	}
	return doc, raw, nil
}

// OpenPreview returns the preview bytes for a teacher document, if one was
// generated.
func (s *DocumentService) OpenPreview(ctx context.Context, id string) (*models.TeacherDocument, []byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.PreviewPath == nil || !s.blobs.Exists(*doc.PreviewPath) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "no preview available")
	}
	data, err := s.blobs.Read(*doc.PreviewPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "preview missing")
	}
	return doc, data, nil
}

// Delete removes a teacher document record together with its blob and
// preview.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete document")
	}
	if err := s.blobs.Delete(doc.Path); err != nil {
		s.logger.Warn("blob removal failed", zap.String("path", doc.Path), zap.Error(err))
	}
	if doc.PreviewPath != nil {
		if err := s.blobs.Delete(*doc.PreviewPath); err != nil {
			s.logger.Warn("preview removal failed", zap.String("path", *doc.PreviewPath), zap.Error(err))
		}
	}
	return nil
}

// DeleteProperty removes a property document record and its blob.
func (s *DocumentService) DeleteProperty(ctx context.Context, id string) error {
	doc, err := s.GetProperty(ctx, id)
	if err != nil {
		return err
	}
	if err := s.properties.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete property document")
	}
	if err := s.blobs.Delete(doc.Path); err != nil {
		s.logger.Warn("blob removal failed", zap.String("path", doc.Path), zap.Error(err))
	}
	if doc.PreviewPath != nil {
		if err := s.blobs.Delete(*doc.PreviewPath); err != nil {
			s.logger.Warn("preview removal failed", zap.String("path", *doc.PreviewPath), zap.Error(err))
		}
	}
	return nil
}
