package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docunet-api/internal/models"
)

// CategoryRepository reads document categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, position, requires_teacher, created_at, updated_at`

// List returns every category in priority order.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories ORDER BY position ASC`, categoryColumns)
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// FindByID fetches a category by ID.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE id = $1`, categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByName fetches a category by exact name, or nil when absent. Raw OCR
// labels go through the classifier's alias table before reaching this lookup.
func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE LOWER(name) = LOWER($1) LIMIT 1`, categoryColumns)
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find category by name: %w", err)
	}
	return &category, nil
}
