package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	apperrors "github.com/coltonswapp/nest-note-sub009/pkg/errors"
)

// SessionService handles the CRUD surface for live sessions. Lifecycle
// transitions belong to the sweep, not to this service.
type SessionService struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// SessionOption customises the session service.
type SessionOption func(*SessionService)

// WithSessionClock overrides the clock used for new sessions (test helper).
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *SessionService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// NewSessionService constructs a SessionService.
func NewSessionService(db *gorm.DB, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	svc := &SessionService{
		db:      db,
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CreateSessionInput carries the fields a client supplies for a new session.
type CreateSessionInput struct {
	NestID           string
	OwnerUserID      string
	AssignedSitterID *string
	Title            string
	StartDate        time.Time
	EndDate          time.Time
}

// CreateSession persists a new session in the upcoming state.
func (s *SessionService) CreateSession(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	input.NestID = strings.TrimSpace(input.NestID)
	input.OwnerUserID = strings.TrimSpace(input.OwnerUserID)
	input.Title = strings.TrimSpace(input.Title)

	switch {
	case input.NestID == "":
		return nil, apperrors.NewBadRequest("nest id is required")
	case input.OwnerUserID == "":
		return nil, apperrors.NewBadRequest("owner user id is required")
	case input.Title == "":
		return nil, apperrors.NewBadRequest("title is required")
	case input.StartDate.IsZero() || input.EndDate.IsZero():
		return nil, apperrors.NewBadRequest("start and end dates are required")
	case input.EndDate.Before(input.StartDate):
		return nil, apperrors.NewBadRequest("end date must not precede start date")
	}

	now := s.timeNow().UTC()
	session := models.Session{
		NestID:           input.NestID,
		OwnerUserID:      input.OwnerUserID,
		AssignedSitterID: input.AssignedSitterID,
		Title:            input.Title,
		Status:           models.StatusUpcoming,
		StartDate:        input.StartDate.UTC(),
		EndDate:          input.EndDate.UTC(),
		LastStatusUpdate: now,
	}

	if err := s.db.WithContext(ensureContext(ctx)).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}
	return &session, nil
}

// GetSession loads one session scoped to its nest.
func (s *SessionService) GetSession(ctx context.Context, nestID, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ensureContext(ctx)).
		First(&session, "id = ? AND nest_id = ?", strings.TrimSpace(sessionID), strings.TrimSpace(nestID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: load session: %w", err)
	}
	return &session, nil
}

// ListSessions returns the nest's live sessions, optionally filtered by
// status, ordered by start date.
func (s *SessionService) ListSessions(ctx context.Context, nestID string, status models.SessionStatus) ([]models.Session, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.NewBadRequest("unknown session status")
	}

	query := s.db.WithContext(ensureContext(ctx)).
		Where("nest_id = ?", strings.TrimSpace(nestID)).
		Order("start_date ASC, id ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var sessions []models.Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}
	return sessions, nil
}
