package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/result-system/apiserver/types"
)

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sql.DB
}

func NewClassRepository(db *sql.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) Create(ctx context.Context, class types.ClassRoom) (types.ClassRoom, error) {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	const query = `
		INSERT INTO class_rooms (id, name, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		class.ID,
		class.Name,
		class.TeacherID,
		class.CreatedAt,
		class.UpdatedAt,
	); err != nil {
		return types.ClassRoom{}, mapError(err)
	}
	return class, nil
}
