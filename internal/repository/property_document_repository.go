package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docunet-api/internal/models"
)

// PropertyDocumentRepository handles school property document persistence.
type PropertyDocumentRepository struct {
	db *sqlx.DB
}

// NewPropertyDocumentRepository constructs the repository.
func NewPropertyDocumentRepository(db *sqlx.DB) *PropertyDocumentRepository {
	return &PropertyDocumentRepository{db: db}
}

const propertyDocumentColumns = `id, user_id, category_id, property_type, name, path, mime_type, size,
       preview_path, extracted_text, created_at, updated_at`

// Create stores a new property document record.
func (r *PropertyDocumentRepository) Create(ctx context.Context, doc *models.PropertyDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO school_property_documents
	(id, user_id, category_id, property_type, name, path, mime_type, size, preview_path, extracted_text, created_at, updated_at)
	VALUES (:id, :user_id, :category_id, :property_type, :name, :path, :mime_type, :size, :preview_path, :extracted_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create property document: %w", err)
	}
	return nil
}

// GetByID retrieves one property document row.
func (r *PropertyDocumentRepository) GetByID(ctx context.Context, id string) (*models.PropertyDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM school_property_documents WHERE id = $1`, propertyDocumentColumns)
	var doc models.PropertyDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByPath retrieves the property document owning the given blob path.
func (r *PropertyDocumentRepository) GetByPath(ctx context.Context, path string) (*models.PropertyDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM school_property_documents WHERE path = $1`, propertyDocumentColumns)
	var doc models.PropertyDocument
	if err := r.db.GetContext(ctx, &doc, query, path); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByCategory returns the first existing document in the category scope,
// or nil when none exists.
func (r *PropertyDocumentRepository) FindByCategory(ctx context.Context, categoryID string) (*models.PropertyDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM school_property_documents
	WHERE category_id = $1 ORDER BY created_at ASC LIMIT 1`, propertyDocumentColumns)
	var doc models.PropertyDocument
	if err := r.db.GetContext(ctx, &doc, query, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find property document by category: %w", err)
	}
	return &doc, nil
}

// ListNamesByCategory returns every display name in the category collision scope.
func (r *PropertyDocumentRepository) ListNamesByCategory(ctx context.Context, categoryID string) ([]string, error) {
	const query = `SELECT name FROM school_property_documents WHERE category_id = $1`
	names := make([]string, 0)
	if err := r.db.SelectContext(ctx, &names, query, categoryID); err != nil {
		return nil, fmt.Errorf("list property document names: %w", err)
	}
	return names, nil
}

// ListAll returns every property document; the metadata index is built from this.
func (r *PropertyDocumentRepository) ListAll(ctx context.Context) ([]models.PropertyDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM school_property_documents ORDER BY created_at ASC`, propertyDocumentColumns)
	docs := make([]models.PropertyDocument, 0)
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list all property documents: %w", err)
	}
	return docs, nil
}

// Delete removes a property document record.
func (r *PropertyDocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM school_property_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete property document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check property document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
