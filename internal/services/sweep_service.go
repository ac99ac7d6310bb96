package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
	"github.com/coltonswapp/nest-note-sub009/pkg/metrics"
)

const (
	// startWindowSlack is the tolerance around a session's start date inside
	// which an upcoming session is considered starting.
	startWindowSlack = 10 * time.Minute

	// extendedSettleAfter is how long an extended session may sit without a
	// status change before it is auto-completed.
	extendedSettleAfter = 2 * time.Hour
)

// SessionSweepStore is the slice of the session store the sweep needs.
type SessionSweepStore interface {
	QueryByStatusInWindow(ctx context.Context, status models.SessionStatus, field string, lower, upper *time.Time) ([]models.Session, error)
	BatchUpdateStatus(ctx context.Context, updates []models.StatusUpdate) ([]string, error)
}

// Dispatcher fans a status change out to the session's participants.
type Dispatcher interface {
	Dispatch(ctx context.Context, session *models.Session, newStatus models.SessionStatus) (DispatchReport, error)
}

// SweepResult summarises one transition sweep.
type SweepResult struct {
	Started                int `json:"started"`
	Extended               int `json:"extended"`
	Completed              int `json:"completed"`
	NotificationsAttempted int `json:"notifications_attempted"`
	NotificationsFailed    int `json:"notifications_failed"`
}

// Transitioned returns the total number of sessions moved this sweep.
func (r SweepResult) Transitioned() int {
	return r.Started + r.Extended + r.Completed
}

// SweepService advances sessions through the lifecycle state machine.
type SweepService struct {
	sessions   SessionSweepStore
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewSweepService constructs a SweepService.
func NewSweepService(sessions SessionSweepStore, dispatcher Dispatcher) (*SweepService, error) {
	if sessions == nil {
		return nil, errors.New("sweep service: session store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("sweep service: dispatcher is required")
	}

	return &SweepService{
		sessions:   sessions,
		dispatcher: dispatcher,
		log:        logger.WithModule("sweep"),
	}, nil
}

type pendingTransition struct {
	session models.Session
	to      models.SessionStatus
}

// RunTransitionSweep evaluates all three candidate buckets against the given
// reference time, applies every due transition in one guarded batch, and
// dispatches a notification for each transition that actually landed. Sessions
// never skip a state in one sweep; a long-overdue session catches up across
// consecutive sweeps instead.
func (s *SweepService) RunTransitionSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	ctx = ensureContext(ctx)
	started := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("transitions").Observe(time.Since(started).Seconds())
	}()

	var (
		startingLower = now.Add(-startWindowSlack)
		startingUpper = now.Add(startWindowSlack)
		settledBefore = now.Add(-extendedSettleAfter)

		upcoming   []models.Session
		inProgress []models.Session
		extended   []models.Session
	)

	// The three buckets are disjoint by status, so they can load in parallel.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		upcoming, err = s.sessions.QueryByStatusInWindow(groupCtx, models.StatusUpcoming, store.FieldStartDate, &startingLower, &startingUpper)
		return err
	})
	group.Go(func() error {
		var err error
		inProgress, err = s.sessions.QueryByStatusInWindow(groupCtx, models.StatusInProgress, store.FieldEndDate, nil, &now)
		return err
	})
	group.Go(func() error {
		var err error
		extended, err = s.sessions.QueryByStatusInWindow(groupCtx, models.StatusExtended, store.FieldLastStatusUpdate, nil, &settledBefore)
		return err
	})
	if err := group.Wait(); err != nil {
		return result, fmt.Errorf("sweep service: query candidates: %w", err)
	}

	var (
		staged  []models.StatusUpdate
		pending []pendingTransition
	)
	stage := func(sessions []models.Session) {
		for _, session := range sessions {
			next, ok := session.Status.Next()
			if !ok {
				continue
			}
			staged = append(staged, models.StatusUpdate{
				SessionID: session.ID,
				From:      session.Status,
				To:        next,
				At:        now,
			})
			pending = append(pending, pendingTransition{session: session, to: next})
		}
	}
	stage(upcoming)
	stage(inProgress)
	stage(extended)

	if len(staged) == 0 {
		s.log.Debug("no sessions due for transition", zap.Time("now", now))
		return result, nil
	}

	applied, err := s.sessions.BatchUpdateStatus(ctx, staged)
	if err != nil {
		return result, fmt.Errorf("sweep service: apply transitions: %w", err)
	}
	appliedSet := make(map[string]struct{}, len(applied))
	for _, id := range applied {
		appliedSet[id] = struct{}{}
	}

	for _, transition := range pending {
		if _, ok := appliedSet[transition.session.ID]; !ok {
			// Another writer moved the session first; the update was a no-op.
			continue
		}

		from := transition.session.Status
		switch transition.to {
		case models.StatusInProgress:
			result.Started++
		case models.StatusExtended:
			result.Extended++
		case models.StatusCompleted:
			result.Completed++
		}
		metrics.SessionsTransitioned.WithLabelValues(string(from), string(transition.to)).Inc()

		session := transition.session
		session.Status = transition.to
		session.LastStatusUpdate = now

		// The dispatcher is handed the status this sweep decided, not a
		// re-read of the row. One broken session must not stall the rest.
		report, err := s.dispatcher.Dispatch(ctx, &session, transition.to)
		if err != nil {
			s.log.Error("dispatch failed for session",
				zap.String("session_id", session.ID),
				zap.String("status", string(transition.to)),
				zap.Error(err))
			continue
		}
		result.NotificationsAttempted += report.Attempts()
		result.NotificationsFailed += report.Failures
	}

	s.log.Info("transition sweep finished",
		zap.Int("started", result.Started),
		zap.Int("extended", result.Extended),
		zap.Int("completed", result.Completed),
		zap.Int("notifications_attempted", result.NotificationsAttempted),
		zap.Int("notifications_failed", result.NotificationsFailed))

	return result, nil
}
