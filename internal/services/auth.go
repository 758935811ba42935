package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/session"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

const avatarPrefix = "avatars"

// Avatar is an uploaded profile picture waiting to be stored.
type Avatar struct {
	Filename    string
	ContentType string
	Size        int64
	Width       int
	Height      int
	Body        io.Reader
}

// RegisterInput carries validated registration fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Role      types.Role
	Password  string
	Avatar    *Avatar
}

// LoginResult is the token pair handed out by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	// RefreshTTL is the refresh token lifetime in whole seconds.
	RefreshTTL int64
	User       types.AuthorizedUser
}

// AuthService implements registration, login, token refresh and logout.
type AuthService struct {
	users    UserRepository
	sessions SessionStore
	codec    TokenCodec
	hasher   PasswordHasher
	avatars  AvatarStorage
	events   UserEvents
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

type AuthDeps struct {
	Users    UserRepository
	Sessions SessionStore
	Codec    TokenCodec
	Hasher   PasswordHasher
	Avatars  AvatarStorage
	Events   UserEvents
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func NewAuthService(deps AuthDeps) *AuthService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &AuthService{
		users:    deps.Users,
		sessions: deps.Sessions,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		avatars:  deps.Avatars,
		events:   deps.Events,
		metrics:  m,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

// Register creates a TEACHER or STUDENT account and returns its id. The
// stored avatar is removed again if the account cannot be created.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if in.Role != types.RoleTeacher && in.Role != types.RoleStudent {
		return "", apperr.Validation("Invalid input.", `role should be either "STUDENT" or "TEACHER".`)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("count users: %w", err))
	}

	user := types.User{
		Username:     GenerateUsername(in.Role, count, s.now()),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		PasswordHash: hash,
	}

	var avatarKey string
	if in.Avatar != nil {
		obj, err := s.avatars.Upload(ctx, avatarPrefix, in.Avatar.Filename, in.Avatar.Body, in.Avatar.Size, in.Avatar.ContentType)
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("store avatar: %w", err))
		}
		avatarKey = obj.Key
		user.Avatar = &types.Picture{URL: obj.URL, Width: in.Avatar.Width, Height: in.Avatar.Height}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		s.discardAvatar(avatarKey)
		if errors.Is(err, store.ErrConflict) {
			return "", apperr.Conflict("User already exists.", err)
		}
		return "", apperr.Internal(fmt.Errorf("create user: %w", err))
	}

	s.metrics.Registrations.WithLabelValues(string(created.Role)).Inc()
	s.log.Info("user registered",
		zap.String("user_id", created.ID),
		zap.String("username", created.Username),
		zap.String("role", string(created.Role)),
	)
	if s.events != nil {
		s.events.UserRegistered(ctx, created)
	}
	return created.ID, nil
}

// discardAvatar runs detached from the request so a cancelled request still
// cleans up.
func (s *AuthService) discardAvatar(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.avatars.Delete(ctx, key); err != nil {
		s.log.Warn("remove orphaned avatar", zap.String("key", key), zap.Error(err))
	}
}

// Login checks the credentials and starts a new session. Any refresh token
// issued before for the same user stops working.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.Logins.WithLabelValues(metrics.LoginInvalid).Inc()
			return LoginResult{}, apperr.InvalidCredentials()
		}
		s.metrics.Logins.WithLabelValues(metrics.LoginError).Inc()
		return LoginResult{}, apperr.Internal(fmt.Errorf("find user: %w", err))
	}

	ok, err := s.hasher.Verify(ctx, user.PasswordHash, password)
	if err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginError).Inc()
		return LoginResult{}, apperr.Internal(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		s.metrics.Logins.WithLabelValues(metrics.LoginInvalid).Inc()
		return LoginResult{}, apperr.InvalidCredentials()
	}

	principal := user.Authorized()
	access, err := s.codec.IssueAccess(principal)
	if err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginError).Inc()
		return LoginResult{}, apperr.Internal(fmt.Errorf("issue access token: %w", err))
	}
	refresh, err := s.codec.IssueRefresh(principal)
	if err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginError).Inc()
		return LoginResult{}, apperr.Internal(fmt.Errorf("issue refresh token: %w", err))
	}

	ttl := s.codec.RefreshTTLSeconds()
	if err := s.sessions.Put(ctx, principal.ID, refresh, ttl); err != nil {
		s.metrics.Logins.WithLabelValues(metrics.LoginError).Inc()
		return LoginResult{}, apperr.Internal(fmt.Errorf("store session: %w", err))
	}

	s.metrics.Logins.WithLabelValues(metrics.LoginSuccess).Inc()
	s.log.Info("user logged in", zap.String("user_id", principal.ID))
	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshTTL:   ttl,
		User:         principal,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token must be the one stored for its user; on any mismatch the stored
// session is dropped. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	access, err := s.refresh(ctx, refreshToken)
	if err != nil {
		outcome := "rejected"
		if !apperr.IsKind(err, apperr.KindAuthentication) {
			outcome = "error"
		}
		s.metrics.Refreshes.WithLabelValues(outcome).Inc()
		return "", err
	}
	s.metrics.Refreshes.WithLabelValues("success").Inc()
	return access, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperr.Unauthenticated(errors.New("missing refresh token"))
	}

	principal, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return "", apperr.Unauthenticated(err)
	}

	stored, err := s.sessions.Get(ctx, principal.ID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "", s.revoke(ctx, principal.ID, errors.New("no session"))
	case err != nil:
		return "", apperr.Internal(fmt.Errorf("load session: %w", err))
	case stored != refreshToken:
		return "", s.revoke(ctx, principal.ID, errors.New("refresh token does not match session"))
	}

	exists, err := s.users.ExistsByID(ctx, principal.ID)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("check user: %w", err))
	}
	if !exists {
		return "", s.revoke(ctx, principal.ID, errors.New("user no longer exists"))
	}

	access, err := s.codec.IssueAccess(principal)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("issue access token: %w", err))
	}
	return access, nil
}

// revoke drops the session of userID and returns the authentication error
// for reason.
func (s *AuthService) revoke(ctx context.Context, userID string, reason error) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		s.log.Warn("revoke session", zap.String("user_id", userID), zap.Error(err))
	}
	s.log.Info("refresh rejected", zap.String("user_id", userID), zap.String("reason", reason.Error()))
	return apperr.Unauthenticated(reason)
}

// Logout ends the session of userID. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return apperr.Internal(fmt.Errorf("delete session: %w", err))
	}
	s.metrics.Logouts.Inc()
	s.log.Info("user logged out", zap.String("user_id", userID))
	return nil
}
