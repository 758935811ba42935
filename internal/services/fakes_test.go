package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/result-system/apiserver/internal/auth"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/session"
	"github.com/result-system/apiserver/internal/storage"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]types.User
	teaching  map[string]bool
	createErr error
	countErr  error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]types.User{}, teaching: map[string]bool{}}
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeUsers) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.byID), nil
}

func (f *fakeUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.User{}, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Username == user.Username {
			return types.User{}, fmt.Errorf("%w: users_username_key", store.ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) ListNonAdmin(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []types.User
	for _, user := range f.byID {
		if user.Role != types.RoleAdmin {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UpdatedAt.After(users[j].UpdatedAt) })
	total := len(users)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return users[offset:end], total, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return store.ErrNotFound
	}
	if f.teaching[id] {
		return fmt.Errorf("%w: class_rooms_teacher_id_fkey", store.ErrInUse)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) put(user types.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[user.ID] = user
}

type fakeAvatars struct {
	mu        sync.Mutex
	uploaded  map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{uploaded: map[string][]byte{}}
}

func (f *fakeAvatars) Upload(ctx context.Context, prefix, filename string, r io.Reader, size int64, contentType string) (storage.Object, error) {
	if f.uploadErr != nil {
		return storage.Object{}, f.uploadErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.Object{}, err
	}
	key := storage.ObjectKey(prefix, filename)
	f.mu.Lock()
	f.uploaded[key] = body
	f.mu.Unlock()
	return storage.Object{Key: key, URL: "/assets/" + key}, nil
}

func (f *fakeAvatars) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.uploaded, key)
	return nil
}

type fakeEvents struct {
	mu         sync.Mutex
	registered []types.User
	deleted    []string
}

func (f *fakeEvents) UserRegistered(ctx context.Context, user types.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, user)
}

func (f *fakeEvents) UserDeleted(ctx context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
}

type authFixture struct {
	svc      *AuthService
	users    *fakeUsers
	avatars  *fakeAvatars
	events   *fakeEvents
	redis    *miniredis.Miniredis
	sessions *session.Store
	codec    *auth.Codec
	hasher   *auth.Hasher
	metrics  *metrics.Metrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessExpires:  "15m",
		RefreshExpires: "7d",
	})
	require.NoError(t, err)

	hasher, err := auth.NewHasher(auth.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, 2)
	require.NoError(t, err)

	f := &authFixture{
		users:    newFakeUsers(),
		avatars:  newFakeAvatars(),
		events:   &fakeEvents{},
		redis:    mr,
		sessions: session.NewStore(client),
		codec:    codec,
		hasher:   hasher,
		metrics:  metrics.New(),
	}
	f.svc = NewAuthService(AuthDeps{
		Users:    f.users,
		Sessions: f.sessions,
		Codec:    f.codec,
		Hasher:   f.hasher,
		Avatars:  f.avatars,
		Events:   f.events,
		Metrics:  f.metrics,
	})
	return f
}

// seedUser stores a user whose password is password.
func (f *authFixture) seedUser(t *testing.T, username string, role types.Role, password string) types.User {
	t.Helper()
	hash, err := f.hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	user := types.User{
		ID:           uuid.NewString(),
		Username:     username,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         role,
		PasswordHash: hash,
		UpdatedAt:    time.Now(),
	}
	f.users.put(user)
	return user
}
