package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/config"
	"github.com/result-system/apiserver/internal/auth"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/mq"
	"github.com/result-system/apiserver/internal/ratelimit"
	"github.com/result-system/apiserver/internal/services"
	"github.com/result-system/apiserver/internal/session"
	"github.com/result-system/apiserver/internal/storage"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
	testPassword      = "Passw0rd!"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]types.User
}

func (m *memUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byID[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, err := m.GetByID(ctx, id)
	return err == nil, nil
}

func (m *memUsers) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *memUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return user, nil
}

func (m *memUsers) ListNonAdmin(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []types.User
	for _, user := range m.byID {
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

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memClasses struct{}

func (memClasses) Create(ctx context.Context, class types.ClassRoom) (types.ClassRoom, error) {
	class.ID = uuid.NewString()
	return class, nil
}

type testEnv struct {
	router  http.Handler
	users   *memUsers
	codec   *auth.Codec
	hasher  *auth.Hasher
	redis   *miniredis.Miniredis
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:   testAccessSecret,
		RefreshSecret:  testRefreshSecret,
		AccessExpires:  "15m",
		RefreshExpires: "7d",
	})
	require.NoError(t, err)
	hasher, err := auth.NewHasher(auth.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, 2)
	require.NoError(t, err)

	avatars, err := storage.Open(context.Background(), config.StorageConfig{
		Backend:       "local",
		LocalDir:      t.TempDir(),
		PublicBaseURL: "/assets",
	})
	require.NoError(t, err)

	users := &memUsers{byID: map[string]types.User{}}
	sessions := session.NewStore(client)
	m := metrics.New()
	events := mq.NewUserEvents(mq.New(mq.Discard{}), "user-events", log)

	authService := services.NewAuthService(services.AuthDeps{
		Users:    users,
		Sessions: sessions,
		Codec:    codec,
		Hasher:   hasher,
		Avatars:  avatars,
		Events:   events,
		Metrics:  m,
		Log:      log,
	})
	userService := services.NewUserService(users, sessions, events, log)
	classService := services.NewClassService(memClasses{}, users)

	limiter := ratelimit.New(client, "login", 5, 15*time.Minute)
	requireAuth := RequireAuth(codec, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, NewAuthHandler(authService, limiter, m, log, true), requireAuth)
		})
		r.Route("/admin", func(r chi.Router) {
			AdminRouter(r, NewAdminHandler(userService, classService, log), requireAuth)
		})
	})

	return &testEnv{router: r, users: users, codec: codec, hasher: hasher, redis: mr, metrics: m}
}

func (e *testEnv) seedUser(t *testing.T, username string, role types.Role) types.User {
	t.Helper()
	hash, err := e.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	user, err := e.users.Create(context.Background(), types.User{
		Username:     username,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         role,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) accessToken(t *testing.T, user types.User) string {
	t.Helper()
	token, err := e.codec.IssueAccess(user.Authorized())
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &envelope), string(body))
	require.True(t, envelope.Success, string(body))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Success)
	return resp
}

func refreshCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}
