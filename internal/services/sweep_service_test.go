package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/database/testutil"
	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
)

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []pendingTransition
	report     DispatchReport
	failFor    map[string]error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failFor: make(map[string]error)}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, session *models.Session, newStatus models.SessionStatus) (DispatchReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.failFor[session.ID]; ok {
		return DispatchReport{}, err
	}
	d.dispatched = append(d.dispatched, pendingTransition{session: *session, to: newStatus})
	return d.report, nil
}

func (d *fakeDispatcher) statuses() map[string]models.SessionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]models.SessionStatus, len(d.dispatched))
	for _, call := range d.dispatched {
		out[call.session.ID] = call.to
	}
	return out
}

func seedLiveSession(t *testing.T, db *gorm.DB, id string, status models.SessionStatus, start, end, lastUpdate time.Time) {
	t.Helper()

	session := models.Session{
		ID:               id,
		NestID:           "nest-1",
		OwnerUserID:      "owner-1",
		Title:            "Session " + id,
		Status:           status,
		StartDate:        start,
		EndDate:          end,
		LastStatusUpdate: lastUpdate,
	}
	require.NoError(t, db.Create(&session).Error)
}

func sessionStatus(t *testing.T, db *gorm.DB, id string) models.SessionStatus {
	t.Helper()

	var session models.Session
	require.NoError(t, db.First(&session, "id = ?", id).Error)
	return session.Status
}

func TestRunTransitionSweepMovesEachBucketOneStep(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := store.NewSessionGateway(db)
	require.NoError(t, err)
	dispatcher := newFakeDispatcher()
	dispatcher.report = DispatchReport{Successes: 1}

	svc, err := NewSweepService(gateway, dispatcher)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Due in each bucket.
	seedLiveSession(t, db, "starting", models.StatusUpcoming, now.Add(5*time.Minute), now.Add(2*time.Hour), now.Add(-time.Hour))
	seedLiveSession(t, db, "overran", models.StatusInProgress, now.Add(-2*time.Hour), now.Add(-time.Minute), now.Add(-2*time.Hour))
	seedLiveSession(t, db, "settled", models.StatusExtended, now.Add(-5*time.Hour), now.Add(-4*time.Hour), now.Add(-3*time.Hour))

	// Not due.
	seedLiveSession(t, db, "too-early", models.StatusUpcoming, now.Add(time.Hour), now.Add(3*time.Hour), now.Add(-time.Hour))
	seedLiveSession(t, db, "still-running", models.StatusInProgress, now.Add(-time.Hour), now.Add(time.Hour), now.Add(-time.Hour))
	seedLiveSession(t, db, "recently-extended", models.StatusExtended, now.Add(-3*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Hour))

	result, err := svc.RunTransitionSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, result.Started)
	require.Equal(t, 1, result.Extended)
	require.Equal(t, 1, result.Completed)
	require.Equal(t, 3, result.NotificationsAttempted)

	require.Equal(t, models.StatusInProgress, sessionStatus(t, db, "starting"))
	require.Equal(t, models.StatusExtended, sessionStatus(t, db, "overran"))
	require.Equal(t, models.StatusCompleted, sessionStatus(t, db, "settled"))
	require.Equal(t, models.StatusUpcoming, sessionStatus(t, db, "too-early"))
	require.Equal(t, models.StatusInProgress, sessionStatus(t, db, "still-running"))
	require.Equal(t, models.StatusExtended, sessionStatus(t, db, "recently-extended"))

	require.Equal(t, map[string]models.SessionStatus{
		"starting": models.StatusInProgress,
		"overran":  models.StatusExtended,
		"settled":  models.StatusCompleted,
	}, dispatcher.statuses())
}

func TestRunTransitionSweepNeverSkipsStates(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := store.NewSessionGateway(db)
	require.NoError(t, err)
	dispatcher := newFakeDispatcher()

	svc, err := NewSweepService(gateway, dispatcher)
	require.NoError(t, err)

	// Still upcoming although its end passed hours ago: the start window was
	// missed, so it only catches up one state per sweep.
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := start.Add(6 * time.Hour)
	seedLiveSession(t, db, "missed", models.StatusUpcoming, start, start.Add(time.Hour), start.Add(-time.Hour))

	// Outside the ±10m start window: the first sweep does nothing.
	result, err := svc.RunTransitionSweep(context.Background(), now)
	require.NoError(t, err)
	require.Zero(t, result.Transitioned())
	require.Equal(t, models.StatusUpcoming, sessionStatus(t, db, "missed"))
}

func TestRunTransitionSweepIdempotentWithinWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := store.NewSessionGateway(db)
	require.NoError(t, err)
	dispatcher := newFakeDispatcher()

	svc, err := NewSweepService(gateway, dispatcher)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedLiveSession(t, db, "starting", models.StatusUpcoming, now.Add(5*time.Minute), now.Add(2*time.Hour), now.Add(-time.Hour))

	first, err := svc.RunTransitionSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, first.Started)

	// Re-running at the same instant finds the session already moved.
	second, err := svc.RunTransitionSweep(context.Background(), now)
	require.NoError(t, err)
	require.Zero(t, second.Transitioned())
	require.Len(t, dispatcher.dispatched, 1)
}

func TestRunTransitionSweepDispatchFailureIsIsolated(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := store.NewSessionGateway(db)
	require.NoError(t, err)
	dispatcher := newFakeDispatcher()
	dispatcher.failFor["broken"] = errors.New("dispatch blew up")

	svc, err := NewSweepService(gateway, dispatcher)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedLiveSession(t, db, "broken", models.StatusUpcoming, now, now.Add(2*time.Hour), now.Add(-time.Hour))
	seedLiveSession(t, db, "healthy", models.StatusUpcoming, now, now.Add(2*time.Hour), now.Add(-time.Hour))

	result, err := svc.RunTransitionSweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Started, "the transition still counts even when its dispatch fails")
	require.Equal(t, map[string]models.SessionStatus{"healthy": models.StatusInProgress}, dispatcher.statuses())

	// Both rows moved regardless of dispatch outcome.
	require.Equal(t, models.StatusInProgress, sessionStatus(t, db, "broken"))
	require.Equal(t, models.StatusInProgress, sessionStatus(t, db, "healthy"))
}

type failingSweepStore struct{}

func (failingSweepStore) QueryByStatusInWindow(context.Context, models.SessionStatus, string, *time.Time, *time.Time) ([]models.Session, error) {
	return nil, errors.New("db down")
}

func (failingSweepStore) BatchUpdateStatus(context.Context, []models.StatusUpdate) ([]string, error) {
	return nil, errors.New("db down")
}

func TestRunTransitionSweepQueryErrorIsFatal(t *testing.T) {
	svc, err := NewSweepService(failingSweepStore{}, newFakeDispatcher())
	require.NoError(t, err)

	_, err = svc.RunTransitionSweep(context.Background(), time.Now())
	require.Error(t, err)
}

// TestSessionLifecycleEndToEnd walks one session through every automated state
// change the way the schedulers would, sweep by sweep.
func TestSessionLifecycleEndToEnd(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	gateway, err := store.NewSessionGateway(db)
	require.NoError(t, err)
	dispatcher := newFakeDispatcher()

	sweeps, err := NewSweepService(gateway, dispatcher)
	require.NoError(t, err)
	archival, err := NewArchivalService(gateway)
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := day.Add(10 * time.Hour)
	end := day.Add(11 * time.Hour)
	seedLiveSession(t, db, "walkthrough", models.StatusUpcoming, start, end, day)

	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	// 09:45 — start is 15 minutes out, beyond the window.
	result, err := sweeps.RunTransitionSweep(context.Background(), at(9, 45))
	require.NoError(t, err)
	require.Zero(t, result.Transitioned())

	// 09:55 — inside the window, the session starts.
	result, err = sweeps.RunTransitionSweep(context.Background(), at(9, 55))
	require.NoError(t, err)
	require.Equal(t, 1, result.Started)
	require.Equal(t, models.StatusInProgress, sessionStatus(t, db, "walkthrough"))

	// 11:00 — the scheduled end has passed, the session extends.
	result, err = sweeps.RunTransitionSweep(context.Background(), at(11, 0))
	require.NoError(t, err)
	require.Equal(t, 1, result.Extended)
	require.Equal(t, models.StatusExtended, sessionStatus(t, db, "walkthrough"))

	// 12:55 — extended less than two hours ago, nothing happens.
	result, err = sweeps.RunTransitionSweep(context.Background(), at(12, 55))
	require.NoError(t, err)
	require.Zero(t, result.Transitioned())

	// 13:05 — two hours of silence, the session completes.
	result, err = sweeps.RunTransitionSweep(context.Background(), at(13, 5))
	require.NoError(t, err)
	require.Equal(t, 1, result.Completed)
	require.Equal(t, models.StatusCompleted, sessionStatus(t, db, "walkthrough"))

	// Day 8 — the retention window has elapsed, the session is archived.
	archiveResult, err := archival.RunArchivalSweep(context.Background(), day.AddDate(0, 0, 8))
	require.NoError(t, err)
	require.Equal(t, 1, archiveResult.Archived)

	var live models.Session
	err = db.First(&live, "id = ?", "walkthrough").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var archived models.ArchivedSession
	require.NoError(t, db.First(&archived, "id = ?", "walkthrough").Error)
	require.Equal(t, models.StatusArchived, archived.Status)

	require.Equal(t, []models.SessionStatus{
		models.StatusInProgress,
		models.StatusExtended,
		models.StatusCompleted,
	}, func() []models.SessionStatus {
		out := make([]models.SessionStatus, 0, len(dispatcher.dispatched))
		for _, call := range dispatcher.dispatched {
			out = append(out, call.to)
		}
		return out
	}(), "each transition notifies exactly once, in order")
}
