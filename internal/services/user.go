package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/store"
	"github.com/result-system/apiserver/types"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users    []types.User    `json:"users"`
	Total    int             `json:"total"`
	PageInfo *types.PageInfo `json:"pageInfo,omitempty"`
}

// UserService encapsulates the admin use-cases on user accounts.
type UserService struct {
	repo     UserRepository
	sessions SessionStore
	events   UserEvents
	log      *zap.Logger
}

func NewUserService(repo UserRepository, sessions SessionStore, events UserEvents, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{repo: repo, sessions: sessions, events: events, log: log.Named("users")}
}

// List returns TEACHER and STUDENT accounts, most recently updated first.
// page starts at 1.
func (s *UserService) List(ctx context.Context, page, limit int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	users, total, err := s.repo.ListNonAdmin(ctx, (page-1)*limit, limit)
	if err != nil {
		return UserPage{}, apperr.Internal(fmt.Errorf("list users: %w", err))
	}
	if total == 0 {
		return UserPage{Users: []types.User{}}, nil
	}
	return UserPage{
		Users:    users,
		Total:    total,
		PageInfo: pageInfo(page, limit, total),
	}, nil
}

func pageInfo(page, limit, total int) *types.PageInfo {
	return &types.PageInfo{
		HasNext:      limit*page < total,
		NextPage:     page + 1,
		PreviousPage: page - 1,
		TotalPages:   (total + limit - 1) / limit,
	}
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	if err := validateID(id); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("User not found.")
		}
		return types.User{}, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// Delete removes the account and ends its session. Teachers still assigned
// to a class cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return apperr.NotFound("User not found.")
		case errors.Is(err, store.ErrInUse):
			return apperr.Conflict("User is assigned to a class.", err)
		}
		return apperr.Internal(fmt.Errorf("delete user: %w", err))
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		s.log.Warn("drop session of deleted user", zap.String("user_id", id), zap.Error(err))
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	if s.events != nil {
		s.events.UserDeleted(ctx, id)
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.BadRequest("id must be a valid UUID.")
	}
	return nil
}
