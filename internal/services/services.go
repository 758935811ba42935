package services

import (
	"context"
	"io"

	"github.com/result-system/apiserver/internal/storage"
	"github.com/result-system/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	ListNonAdmin(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Delete(ctx context.Context, id string) error
}

// ClassRepository defines persistence operations for classes.
type ClassRepository interface {
	Create(ctx context.Context, class types.ClassRoom) (types.ClassRoom, error)
}

// SessionStore keeps the current refresh token of each user.
type SessionStore interface {
	Put(ctx context.Context, userID, token string, ttlSeconds int64) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// TokenCodec mints and checks access and refresh tokens.
type TokenCodec interface {
	IssueAccess(user types.AuthorizedUser) (string, error)
	IssueRefresh(user types.AuthorizedUser) (string, error)
	VerifyRefresh(token string) (types.AuthorizedUser, error)
	RefreshTTLSeconds() int64
}

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, encodedHash, password string) (bool, error)
}

// AvatarStorage persists uploaded profile pictures.
type AvatarStorage interface {
	Upload(ctx context.Context, prefix, filename string, r io.Reader, size int64, contentType string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// UserEvents receives user lifecycle notifications. Implementations must not
// block the caller on delivery failures.
type UserEvents interface {
	UserRegistered(ctx context.Context, user types.User)
	UserDeleted(ctx context.Context, userID string)
}
