package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/database/testutil"
	"github.com/coltonswapp/nest-note-sub009/internal/models"
)

func seedSession(t *testing.T, db *gorm.DB, id string, status models.SessionStatus, start, end time.Time) models.Session {
	t.Helper()

	session := models.Session{
		ID:               id,
		NestID:           "nest-1",
		OwnerUserID:      "owner-1",
		Title:            "Session " + id,
		Status:           status,
		StartDate:        start,
		EndDate:          end,
		LastStatusUpdate: start,
	}
	require.NoError(t, db.Create(&session).Error)
	return session
}

func TestQueryByStatusInWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := NewSessionGateway(db)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	seedSession(t, db, "inside", models.StatusUpcoming, now.Add(5*time.Minute), now.Add(time.Hour))
	seedSession(t, db, "outside", models.StatusUpcoming, now.Add(time.Hour), now.Add(2*time.Hour))
	seedSession(t, db, "wrong-status", models.StatusInProgress, now.Add(5*time.Minute), now.Add(time.Hour))

	lower := now.Add(-10 * time.Minute)
	upper := now.Add(10 * time.Minute)

	sessions, err := gateway.QueryByStatusInWindow(context.Background(), models.StatusUpcoming, FieldStartDate, &lower, &upper)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "inside", sessions[0].ID)
}

func TestQueryByStatusInWindowRejectsUnknownField(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := NewSessionGateway(db)
	require.NoError(t, err)

	_, err = gateway.QueryByStatusInWindow(context.Background(), models.StatusUpcoming, "title", nil, nil)
	require.Error(t, err)
}

func TestBatchUpdateStatusGuardsOnCurrentStatus(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := NewSessionGateway(db)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedSession(t, db, "moves", models.StatusUpcoming, now, now.Add(time.Hour))
	seedSession(t, db, "already-moved", models.StatusInProgress, now, now.Add(time.Hour))

	applied, err := gateway.BatchUpdateStatus(context.Background(), []models.StatusUpdate{
		{SessionID: "moves", From: models.StatusUpcoming, To: models.StatusInProgress, At: now},
		{SessionID: "already-moved", From: models.StatusUpcoming, To: models.StatusInProgress, At: now},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"moves"}, applied)

	var moved models.Session
	require.NoError(t, db.First(&moved, "id = ?", "moves").Error)
	require.Equal(t, models.StatusInProgress, moved.Status)
	require.True(t, moved.LastStatusUpdate.Equal(now))
}

func TestArchiveBatchMovesAndOverwrites(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := NewSessionGateway(db)
	require.NoError(t, err)

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	session := seedSession(t, db, "old", models.StatusCompleted, now.Add(-10*24*time.Hour), now.Add(-9*24*time.Hour))

	// Pre-existing archive row from an interrupted earlier sweep.
	stale := models.NewArchivedSession(session, now.Add(-24*time.Hour))
	require.NoError(t, db.Create(&stale).Error)

	count, err := gateway.ArchiveBatch(context.Background(), []models.Session{session}, now)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var live models.Session
	err = db.First(&live, "id = ?", "old").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var archived models.ArchivedSession
	require.NoError(t, db.First(&archived, "id = ?", "old").Error)
	require.Equal(t, models.StatusArchived, archived.Status)
	require.True(t, archived.ArchivedAt.Equal(now), "re-archival must overwrite the stale copy")
}

func TestArchiveCandidatesHonoursCutoff(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := NewSessionGateway(db)
	require.NoError(t, err)

	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	seedSession(t, db, "stale", models.StatusCompleted, now.Add(-9*24*time.Hour), cutoff.Add(-time.Hour))
	seedSession(t, db, "fresh", models.StatusCompleted, now.Add(-2*24*time.Hour), now.Add(-24*time.Hour))
	seedSession(t, db, "not-completed", models.StatusExtended, now.Add(-9*24*time.Hour), cutoff.Add(-time.Hour))

	candidates, err := gateway.ArchiveCandidates(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "stale", candidates[0].ID)
}
