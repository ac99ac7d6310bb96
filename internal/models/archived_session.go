package models

import "time"

// ArchivedSession is the durable copy of a completed session after the
// archival sweep moved it out of the live table. It keeps the session's
// original identifier so re-archival is an idempotent overwrite.
type ArchivedSession struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	NestID string `gorm:"not null;index" json:"nest_id"`

	OwnerUserID      string  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	AssignedSitterID *string `gorm:"type:uuid" json:"assigned_sitter_id,omitempty"`

	Title  string        `gorm:"not null" json:"title"`
	Status SessionStatus `gorm:"type:varchar(32);not null" json:"status"`

	StartDate        time.Time `gorm:"not null" json:"start_date"`
	EndDate          time.Time `gorm:"not null" json:"end_date"`
	LastStatusUpdate time.Time `gorm:"not null" json:"last_status_update"`
	ArchivedAt       time.Time `gorm:"not null;index" json:"archived_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewArchivedSession builds the archive copy of a live session with the
// status overwritten to the archived marker.
func NewArchivedSession(session Session, archivedAt time.Time) ArchivedSession {
	return ArchivedSession{
		ID:               session.ID,
		NestID:           session.NestID,
		OwnerUserID:      session.OwnerUserID,
		AssignedSitterID: session.AssignedSitterID,
		Title:            session.Title,
		Status:           StatusArchived,
		StartDate:        session.StartDate,
		EndDate:          session.EndDate,
		LastStatusUpdate: session.LastStatusUpdate,
		ArchivedAt:       archivedAt,
	}
}
