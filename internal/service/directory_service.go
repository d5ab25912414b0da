package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/docunet-api/internal/models"
	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

type directoryTeacherStore interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type directoryCategoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
}

// DirectoryService serves the teacher and category lookups the upload flow
// needs.
type DirectoryService struct {
	teachers   directoryTeacherStore
	categories directoryCategoryStore
	logger     *zap.Logger
}

func NewDirectoryService(teachers directoryTeacherStore, categories directoryCategoryStore, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{teachers: teachers, categories: categories, logger: logger}
}

// ListTeachers returns teachers matching the filter plus the total count.
func (s *DirectoryService) ListTeachers(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list teachers")
	}
	return teachers, total, nil
}

// GetTeacher returns one teacher by id.
func (s *DirectoryService) GetTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "teacher not found")
	}
	return teacher, nil
}

// ListCategories returns every category in rule-priority order.
func (s *DirectoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list categories")
	}
	return categories, nil
}
