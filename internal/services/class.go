package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

// ClassService encapsulates class use-cases.
type ClassService struct {
	repo  ClassRepository
	users UserRepository
}

func NewClassService(repo ClassRepository, users UserRepository) *ClassService {
	return &ClassService{repo: repo, users: users}
}

// Create adds a class. A non-nil teacherID must reference a TEACHER.
func (s *ClassService) Create(ctx context.Context, name string, teacherID *string) (types.ClassRoom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.ClassRoom{}, apperr.Validation("Invalid input.", "name is required")
	}

	if teacherID != nil {
		if _, err := uuid.Parse(*teacherID); err != nil {
			return types.ClassRoom{}, apperr.Validation("Invalid input.", "teacherId must be a valid UUID.")
		}
		teacher, err := s.users.GetByID(ctx, *teacherID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.ClassRoom{}, apperr.Validation("Invalid input.", "teacherId must reference a teacher.")
		case err != nil:
			return types.ClassRoom{}, apperr.Internal(fmt.Errorf("get teacher: %w", err))
		case teacher.Role != types.RoleTeacher:
			return types.ClassRoom{}, apperr.Validation("Invalid input.", "teacherId must reference a teacher.")
		}
	}

	class, err := s.repo.Create(ctx, types.ClassRoom{Name: name, TeacherID: teacherID})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.ClassRoom{}, apperr.Conflict("Class already exists.", err)
		case errors.Is(err, store.ErrInUse):
			// teacher removed between lookup and insert
			return types.ClassRoom{}, apperr.Validation("Invalid input.", "teacherId must reference a teacher.")
		}
		return types.ClassRoom{}, apperr.Internal(fmt.Errorf("create class: %w", err))
	}
	return class, nil
}
