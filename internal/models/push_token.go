package models

import "time"

// PushToken is one device-specific push address owned by a user. Tokens are
// stored one row each; removal of an invalid token is a single-row delete and
// cannot clobber a token uploaded concurrently by the device.
type PushToken struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Token  string `gorm:"uniqueIndex;not null" json:"token"`

	// UploadedAt drives lazy expiry: tokens older than the configured TTL
	// are skipped at send time but never deleted for age alone.
	UploadedAt time.Time `gorm:"not null;index" json:"uploaded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
