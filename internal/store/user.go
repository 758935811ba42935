package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/result-system/apiserver/types"
)

// UserRepository handles persistence for users and their avatars.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `
		SELECT u.id, u.username, u.first_name, u.last_name, u.role, u.password,
			u.class_room_id, u.created_at, u.updated_at,
			p.url, p.width, p.height
		FROM users u
		LEFT JOIN pictures p ON p.user_id = u.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user        types.User
		classRoomID sql.NullString
		url         sql.NullString
		width       sql.NullInt64
		height      sql.NullInt64
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.PasswordHash,
		&classRoomID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&url,
		&width,
		&height,
	); err != nil {
		return types.User{}, err
	}
	if classRoomID.Valid {
		user.ClassRoomID = &classRoomID.String
	}
	if url.Valid {
		user.Avatar = &types.Picture{
			URL:    url.String,
			Width:  int(width.Int64),
			Height: int(height.Int64),
		}
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// GetByUsername looks up a user by exact username, avatar included.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE u.username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM users`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Create inserts the user and, when present, its avatar in one transaction.
// A fresh UUID is assigned when user.ID is empty.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.User{}, err
	}
	defer tx.Rollback()

	const insertUser = `
		INSERT INTO users (id, username, first_name, last_name, role, password, class_room_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(
		ctx,
		insertUser,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Role,
		user.PasswordHash,
		user.ClassRoomID,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, fmt.Errorf("insert user: %w", mapError(err))
	}

	if user.Avatar != nil {
		const insertPicture = `
			INSERT INTO pictures (id, user_id, url, width, height)
			VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(
			ctx,
			insertPicture,
			uuid.NewString(),
			user.ID,
			user.Avatar.URL,
			user.Avatar.Width,
			user.Avatar.Height,
		); err != nil {
			return types.User{}, fmt.Errorf("insert avatar: %w", mapError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// ListNonAdmin pages through TEACHER and STUDENT accounts, most recently
// updated first.
func (r *UserRepository) ListNonAdmin(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM users WHERE role <> 'ADMIN'`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, selectUser+`
		WHERE u.role <> 'ADMIN'
		ORDER BY u.updated_at DESC
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Delete removes the user. ErrInUse is returned while a class still
// references the user as its teacher.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
