package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationPreferences controls which push categories a user receives.
type NotificationPreferences struct {
	SessionNotifications bool `json:"session_notifications"`
	OtherNotifications   bool `json:"other_notifications"`
}

// User holds the account record the dispatcher consults before sending.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`

	// Preferences stores the serialized NotificationPreferences. A null or
	// absent value means notifications are disabled, never enabled.
	Preferences datatypes.JSON `gorm:"type:json" json:"preferences,omitempty"`

	Tokens []PushToken `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// NotificationPrefs decodes the stored preferences. The second return value
// is false when no preference object exists or it cannot be decoded; callers
// must treat that as notifications disabled.
func (u *User) NotificationPrefs() (NotificationPreferences, bool) {
	if u == nil || len(u.Preferences) == 0 {
		return NotificationPreferences{}, false
	}

	var prefs NotificationPreferences
	if err := json.Unmarshal(u.Preferences, &prefs); err != nil {
		return NotificationPreferences{}, false
	}
	return prefs, true
}

// EncodePreferences serializes preferences for storage.
func EncodePreferences(prefs NotificationPreferences) (datatypes.JSON, error) {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}
