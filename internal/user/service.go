package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

var ErrNotFound = errors.New("user not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Store is the persistence surface the service needs; *repo.UserRepo satisfies it.
type Store interface {
	GetBySlackID(ctx context.Context, slackUserID string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	CreateIfAbsent(ctx context.Context, u *entity.User) (bool, error)
	UpdatePreferences(ctx context.Context, id string, prefs entity.Preferences) (*entity.User, error)
}

// Service resolves chat-platform accounts to User rows.
type Service struct {
	store Store
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{store: store, newID: utilities.NewID}
}

// FindOrCreate returns the user for slackUserID, creating it with name when
// absent. Concurrent first calls for the same account converge on one row.
func (s *Service) FindOrCreate(ctx context.Context, slackUserID, name string) (*entity.User, error) {
	slackUserID = strings.TrimSpace(slackUserID)
	if slackUserID == "" {
		return nil, &ValidationError{Field: "slackUserId", Message: "slack user id is required"}
	}
	u, err := s.store.GetBySlackID(ctx, slackUserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = slackUserID
	}
	if _, err := s.store.CreateIfAbsent(ctx, &entity.User{
		ID:          s.newID(),
		SlackUserID: slackUserID,
		Name:        name,
		Preferences: entity.Preferences{},
	}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	// re-read so a row inserted by a concurrent caller wins
	u, err = s.store.GetBySlackID(ctx, slackUserID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return u, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdatePreferences merges patch into the user's stored preferences.
func (s *Service) UpdatePreferences(ctx context.Context, id string, patch entity.Preferences) (*entity.User, error) {
	if patch == nil {
		return nil, &ValidationError{Field: "preferences", Message: "preferences object is required"}
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdatePreferences(ctx, id, u.Preferences.Merge(patch))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return updated, nil
}
