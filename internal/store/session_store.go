package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
)

// Window field names accepted by QueryByStatusInWindow. The field is
// interpolated into SQL, so it must come from this fixed set.
const (
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
	FieldLastStatusUpdate = "last_status_update"
)

var windowFields = map[string]struct{}{
	FieldStartDate:        {},
	FieldEndDate:          {},
	FieldLastStatusUpdate: {},
}

// SessionGateway is the GORM-backed session store used by the sweep engines.
type SessionGateway struct {
	db *gorm.DB
}

// NewSessionGateway constructs a SessionGateway.
func NewSessionGateway(db *gorm.DB) (*SessionGateway, error) {
	if db == nil {
		return nil, errors.New("session store: db is required")
	}
	return &SessionGateway{db: db}, nil
}

// QueryByStatusInWindow returns live sessions in the given status whose time
// field falls inside the inclusive [lower, upper] window. Either bound may be
// nil for a half-open range.
func (g *SessionGateway) QueryByStatusInWindow(ctx context.Context, status models.SessionStatus, field string, lower, upper *time.Time) ([]models.Session, error) {
	if _, ok := windowFields[field]; !ok {
		return nil, fmt.Errorf("session store: unsupported window field %q", field)
	}

	query := g.db.WithContext(ctx).Where("status = ?", status)
	if lower != nil {
		query = query.Where(field+" >= ?", *lower)
	}
	if upper != nil {
		query = query.Where(field+" <= ?", *upper)
	}

	var sessions []models.Session
	if err := query.Order("start_date ASC, id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session store: query %s window: %w", status, err)
	}
	return sessions, nil
}

// BatchUpdateStatus applies the staged transitions in one commit and returns
// the ids of the sessions that actually moved. Each update is guarded by the
// session's expected current status; a row that no longer matches was already
// transitioned by an earlier run and is skipped silently.
func (g *SessionGateway) BatchUpdateStatus(ctx context.Context, updates []models.StatusUpdate) ([]string, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	applied := make([]string, 0, len(updates))
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			result := tx.Model(&models.Session{}).
				Where("id = ? AND status = ?", update.SessionID, update.From).
				Updates(map[string]any{
					"status":             update.To,
					"last_status_update": update.At,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				applied = append(applied, update.SessionID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session store: batch update status: %w", err)
	}
	return applied, nil
}

// ArchiveCandidates returns completed sessions whose end date is at or before
// the cutoff instant.
func (g *SessionGateway) ArchiveCandidates(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := g.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", models.StatusCompleted, cutoff).
		Order("end_date ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session store: query archive candidates: %w", err)
	}
	return sessions, nil
}

// ArchiveBatch moves the given sessions into the archive table in one commit.
// For every session the archive copy is written before the live row is
// deleted, so an interrupted sweep can leave a session in both places but
// never in neither. Re-archiving an id already present in the archive is an
// idempotent overwrite.
func (g *SessionGateway) ArchiveBatch(ctx context.Context, sessions []models.Session, archivedAt time.Time) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, session := range sessions {
			archived := models.NewArchivedSession(session, archivedAt)
			if err := tx.
				Clauses(clause.OnConflict{UpdateAll: true}).
				Create(&archived).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Session{}, "id = ?", session.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("session store: archive batch: %w", err)
	}
	return len(sessions), nil
}
