package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
)

// UserGateway is the GORM-backed user and push-token store.
type UserGateway struct {
	db *gorm.DB
}

// NewUserGateway constructs a UserGateway.
func NewUserGateway(db *gorm.DB) (*UserGateway, error) {
	if db == nil {
		return nil, errors.New("user store: db is required")
	}
	return &UserGateway{db: db}, nil
}

// GetUser loads a user record. A missing user returns (nil, nil); the
// dispatcher treats that as a soft skip, not an error.
func (g *UserGateway) GetUser(ctx context.Context, userID string) (*models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	var user models.User
	if err := g.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("user store: load user: %w", err)
	}
	return &user, nil
}

// TokensForUser returns every push token owned by the user, oldest first.
func (g *UserGateway) TokensForUser(ctx context.Context, userID string) ([]models.PushToken, error) {
	var tokens []models.PushToken
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at ASC, id ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("user store: load tokens: %w", err)
	}
	return tokens, nil
}

// RemoveToken deletes exactly one token string for the user. Removing a token
// that is already gone is not an error.
func (g *UserGateway) RemoveToken(ctx context.Context, userID, token string) error {
	result := g.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.PushToken{})
	if result.Error != nil {
		return fmt.Errorf("user store: remove token: %w", result.Error)
	}
	return nil
}

// RegisterToken upserts a device token for the user. A re-uploaded token
// refreshes its uploaded timestamp, resetting the lazy expiry clock.
func (g *UserGateway) RegisterToken(ctx context.Context, userID, token string, uploadedAt time.Time) error {
	record := models.PushToken{
		UserID:     userID,
		Token:      token,
		UploadedAt: uploadedAt,
	}

	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token"}},
			DoUpdates: clause.Assignments(map[string]any{
				"user_id":     userID,
				"uploaded_at": uploadedAt,
			}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("user store: register token: %w", err)
	}
	return nil
}

// UpdatePreferences persists the user's notification preference object.
func (g *UserGateway) UpdatePreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) error {
	payload, err := models.EncodePreferences(prefs)
	if err != nil {
		return fmt.Errorf("user store: encode preferences: %w", err)
	}

	result := g.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("preferences", payload)
	if result.Error != nil {
		return fmt.Errorf("user store: update preferences: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
