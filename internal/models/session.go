package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStatus enumerates the automated lifecycle states of a sitting session.
type SessionStatus string

const (
	// StatusUpcoming marks a session that has not started yet.
	StatusUpcoming SessionStatus = "upcoming"
	// StatusInProgress marks a session whose start window has been reached.
	StatusInProgress SessionStatus = "inProgress"
	// StatusExtended marks a session that ran past its scheduled end.
	StatusExtended SessionStatus = "extended"
	// StatusCompleted marks a session that settled two hours after extension.
	StatusCompleted SessionStatus = "completed"
	// StatusArchived is only ever written to the archive store, never to the
	// live sessions table.
	StatusArchived SessionStatus = "archived"
)

// Valid reports whether the status is one of the live lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusInProgress, StatusExtended, StatusCompleted:
		return true
	default:
		return false
	}
}

// Next returns the status a session advances to when its exit condition is
// met. Completed is terminal for the live store; archival happens elsewhere.
func (s SessionStatus) Next() (SessionStatus, bool) {
	switch s {
	case StatusUpcoming:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusExtended, true
	case StatusExtended:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Session represents a scheduled sitting session between an owner and a sitter.
type Session struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	NestID string `gorm:"not null;index" json:"nest_id"`

	OwnerUserID      string  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	AssignedSitterID *string `gorm:"type:uuid;index" json:"assigned_sitter_id,omitempty"`

	Title  string        `gorm:"not null" json:"title"`
	Status SessionStatus `gorm:"type:varchar(32);not null;index" json:"status"`

	StartDate        time.Time `gorm:"not null;index" json:"start_date"`
	EndDate          time.Time `gorm:"not null;index" json:"end_date"`
	LastStatusUpdate time.Time `gorm:"not null;index" json:"last_status_update"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SitterUserID returns the assigned sitter's user id, if any.
func (s *Session) SitterUserID() (string, bool) {
	if s.AssignedSitterID == nil {
		return "", false
	}
	sitter := strings.TrimSpace(*s.AssignedSitterID)
	if sitter == "" {
		return "", false
	}
	return sitter, true
}
