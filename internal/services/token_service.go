package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
	apperrors "github.com/coltonswapp/nest-note-sub009/pkg/errors"
)

// TokenService handles device token registration and notification preferences.
type TokenService struct {
	users   *store.UserGateway
	timeNow func() time.Time
}

// TokenOption customises the token service.
type TokenOption func(*TokenService)

// WithTokenClock overrides the upload-timestamp clock (test helper).
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(s *TokenService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// NewTokenService constructs a TokenService.
func NewTokenService(users *store.UserGateway, opts ...TokenOption) (*TokenService, error) {
	if users == nil {
		return nil, errors.New("token service: user store is required")
	}

	svc := &TokenService{
		users:   users,
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// RegisterToken records a device token for the user, refreshing the upload
// timestamp when the token is already known.
func (s *TokenService) RegisterToken(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}
	if token == "" {
		return apperrors.NewBadRequest("token is required")
	}

	user, err := s.users.GetUser(ensureContext(ctx), userID)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	if user == nil {
		return apperrors.ErrNotFound
	}

	return s.users.RegisterToken(ctx, userID, token, s.timeNow().UTC())
}

// RemoveToken deletes one device token for the user. Removing an unknown token
// succeeds quietly.
func (s *TokenService) RemoveToken(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}
	if token == "" {
		return apperrors.NewBadRequest("token is required")
	}

	return s.users.RemoveToken(ensureContext(ctx), userID, token)
}

// GetPreferences returns the user's notification preference object. Users who
// never saved one read as all-disabled.
func (s *TokenService) GetPreferences(ctx context.Context, userID string) (models.NotificationPreferences, error) {
	user, err := s.users.GetUser(ensureContext(ctx), strings.TrimSpace(userID))
	if err != nil {
		return models.NotificationPreferences{}, fmt.Errorf("token service: %w", err)
	}
	if user == nil {
		return models.NotificationPreferences{}, apperrors.ErrNotFound
	}

	prefs, _ := user.NotificationPrefs()
	return prefs, nil
}

// UpdatePreferences replaces the user's notification preference object.
func (s *TokenService) UpdatePreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewBadRequest("user id is required")
	}

	err := s.users.UpdatePreferences(ensureContext(ctx), userID, prefs)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	return nil
}
