package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docunet-api/internal/models"
)

// queryTimer receives per-query durations for the status snapshot. A nil
// timer disables timing.
type queryTimer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// DocumentRepository handles teacher document persistence.
type DocumentRepository struct {
	db    *sqlx.DB
	timer queryTimer
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB, timer queryTimer) *DocumentRepository {
	return &DocumentRepository{db: db, timer: timer}
}

func (r *DocumentRepository) observe(label string, start time.Time) {
	if r.timer != nil {
		r.timer.ObserveDBQuery(label, time.Since(start))
	}
}

const teacherDocumentColumns = `id, user_id, teacher_id, category_id, name, path, mime_type, size,
       preview_path, extracted_text, created_at, updated_at`

// Create stores a new teacher document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.TeacherDocument) error {
	defer r.observe("documents.create", time.Now())
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	const query = `INSERT INTO documents
	(id, user_id, teacher_id, category_id, name, path, mime_type, size, preview_path, extracted_text, created_at, updated_at)
	VALUES (:id, :user_id, :teacher_id, :category_id, :name, :path, :mime_type, :size, :preview_path, :extracted_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.TeacherDocument, error) {
	defer r.observe("documents.get", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, teacherDocumentColumns)
	var doc models.TeacherDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByPath retrieves the document owning the given blob path.
func (r *DocumentRepository) GetByPath(ctx context.Context, path string) (*models.TeacherDocument, error) {
	defer r.observe("documents.get_by_path", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE path = $1`, teacherDocumentColumns)
	var doc models.TeacherDocument
	if err := r.db.GetContext(ctx, &doc, query, path); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByTeacherCategory returns the first existing document for the
// (teacher, category) pair, or nil when the scope is empty. Used as the
// duplicate gate before ingest persists a new record.
func (r *DocumentRepository) FindByTeacherCategory(ctx context.Context, teacherID string, categoryID *string) (*models.TeacherDocument, error) {
	defer r.observe("documents.find_by_teacher_category", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM documents
	WHERE teacher_id = $1 AND (category_id = $2 OR (category_id IS NULL AND $2 IS NULL))
	ORDER BY created_at ASC LIMIT 1`, teacherDocumentColumns)
	var doc models.TeacherDocument
	if err := r.db.GetContext(ctx, &doc, query, teacherID, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document by teacher and category: %w", err)
	}
	return &doc, nil
}

// ListNamesByTeacherCategory returns every display name in the
// (teacher, category) collision scope.
func (r *DocumentRepository) ListNamesByTeacherCategory(ctx context.Context, teacherID string, categoryID *string) ([]string, error) {
	defer r.observe("documents.list_names", time.Now())
	const query = `SELECT name FROM documents
	WHERE teacher_id = $1 AND (category_id = $2 OR (category_id IS NULL AND $2 IS NULL))`
	names := make([]string, 0)
	if err := r.db.SelectContext(ctx, &names, query, teacherID, categoryID); err != nil {
		return nil, fmt.Errorf("list document names: %w", err)
	}
	return names, nil
}

// ListAll returns every teacher document; the metadata index is built from this.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]models.TeacherDocument, error) {
	defer r.observe("documents.list_all", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM documents ORDER BY created_at ASC`, teacherDocumentColumns)
	docs := make([]models.TeacherDocument, 0)
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list all documents: %w", err)
	}
	return docs, nil
}

// List returns documents applying filters with pagination.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.TeacherDocument, int, error) {
	defer r.observe("documents.list", time.Now())
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 3)

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		teacherDocumentColumns, where, pageSize, (page-1)*pageSize)
	docs := make([]models.TeacherDocument, 0)
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM documents WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	defer r.observe("documents.delete", time.Now())
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
