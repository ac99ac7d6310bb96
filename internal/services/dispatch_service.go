package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/push"
	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
	"github.com/coltonswapp/nest-note-sub009/pkg/metrics"
)

const (
	// RoleOwner and RoleSitter select the client-side notification copy.
	RoleOwner  = "owner"
	RoleSitter = "sitter"

	// notificationType tags every payload's data block.
	notificationType = "session_status_change"

	defaultTokenExpiryMonths = 4
	defaultSendConcurrency   = 8
)

// UserDirectory is the slice of the user store the dispatcher needs.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	TokensForUser(ctx context.Context, userID string) ([]models.PushToken, error)
	RemoveToken(ctx context.Context, userID, token string) error
}

// PushTarget is one resolved notification recipient with their session role.
type PushTarget struct {
	UserID string
	Role   string
}

// DispatchReport summarises one fan-out call. Invalid tokens are tracked
// separately because they trigger pruning rather than counting as delivery
// failures.
type DispatchReport struct {
	Successes      int `json:"successes"`
	Failures       int `json:"failures"`
	InvalidTokens  int `json:"invalid_tokens"`
	SkippedTargets int `json:"skipped_targets"`
}

// Attempts returns the number of sends issued to the transport.
func (r DispatchReport) Attempts() int {
	return r.Successes + r.Failures + r.InvalidTokens
}

// DispatchService fans one session status change out to the session's
// participants.
type DispatchService struct {
	users  UserDirectory
	sender push.Sender

	tokenExpiryMonths int
	concurrency       int
	timeNow           func() time.Time
	log               *zap.Logger
}

// DispatchOption customises the dispatcher.
type DispatchOption func(*DispatchService)

// WithDispatchClock overrides the clock used for token expiry and payload
// timestamps (test helper).
func WithDispatchClock(clock func() time.Time) DispatchOption {
	return func(s *DispatchService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// WithTokenExpiryMonths adjusts how old an uploaded token may be before it is
// skipped at send time.
func WithTokenExpiryMonths(months int) DispatchOption {
	return func(s *DispatchService) {
		if months > 0 {
			s.tokenExpiryMonths = months
		}
	}
}

// WithSendConcurrency bounds the number of in-flight sends per dispatch call.
func WithSendConcurrency(limit int) DispatchOption {
	return func(s *DispatchService) {
		if limit > 0 {
			s.concurrency = limit
		}
	}
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(users UserDirectory, sender push.Sender, opts ...DispatchOption) (*DispatchService, error) {
	if users == nil {
		return nil, errors.New("dispatch service: user directory is required")
	}
	if sender == nil {
		return nil, errors.New("dispatch service: push sender is required")
	}

	svc := &DispatchService{
		users:             users,
		sender:            sender,
		tokenExpiryMonths: defaultTokenExpiryMonths,
		concurrency:       defaultSendConcurrency,
		timeNow:           time.Now,
		log:               logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Dispatch resolves recipients and tokens for the session, sends one push per
// valid token, and prunes tokens the transport reports as invalid. Individual
// send failures never fail the call; only a session missing its own id does.
func (s *DispatchService) Dispatch(ctx context.Context, session *models.Session, newStatus models.SessionStatus) (DispatchReport, error) {
	var report DispatchReport
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return report, errors.New("dispatch service: session id is required")
	}
	ctx = ensureContext(ctx)

	targets := ResolveTargets(session)
	if len(targets) == 0 {
		s.log.Warn("session has no notification targets",
			zap.String("session_id", session.ID))
		return report, nil
	}

	title, body, known := notificationCopy(newStatus, session.Title)
	if !known {
		s.log.Error("unrecognised status reached dispatcher",
			zap.String("session_id", session.ID),
			zap.String("status", string(newStatus)))
		return report, nil
	}

	now := s.timeNow()
	expiryCutoff := now.AddDate(0, -s.tokenExpiryMonths, 0)
	// One timestamp per dispatch call keeps every send in the batch consistent.
	timestamp := now.UTC().Format(time.RFC3339)

	type pendingSend struct {
		token  string
		userID string
		role   string
	}

	var sends []pendingSend
	for _, target := range targets {
		user, err := s.users.GetUser(ctx, target.UserID)
		if err != nil {
			s.log.Warn("load user failed; skipping target",
				zap.String("session_id", session.ID),
				zap.String("user_id", target.UserID),
				zap.Error(err))
			report.SkippedTargets++
			continue
		}
		if user == nil {
			report.SkippedTargets++
			continue
		}

		// Absent preference objects read as disabled, never as enabled.
		prefs, ok := user.NotificationPrefs()
		if !ok || !prefs.SessionNotifications {
			report.SkippedTargets++
			continue
		}

		tokens, err := s.users.TokensForUser(ctx, target.UserID)
		if err != nil {
			s.log.Warn("load tokens failed; skipping target",
				zap.String("session_id", session.ID),
				zap.String("user_id", target.UserID),
				zap.Error(err))
			report.SkippedTargets++
			continue
		}

		valid := 0
		for _, token := range tokens {
			if token.UploadedAt.Before(expiryCutoff) {
				// Expired tokens are skipped, not deleted.
				continue
			}
			sends = append(sends, pendingSend{token: token.Token, userID: target.UserID, role: target.Role})
			valid++
		}
		if valid == 0 {
			report.SkippedTargets++
		}
	}

	if len(sends) == 0 {
		s.log.Info("no valid recipients for session notification",
			zap.String("session_id", session.ID),
			zap.String("status", string(newStatus)))
		return report, nil
	}

	type deadToken struct {
		userID string
		token  string
	}

	var (
		mu   sync.Mutex
		dead []deadToken
	)

	group := new(errgroup.Group)
	group.SetLimit(s.concurrency)
	for _, send := range sends {
		group.Go(func() error {
			msg := push.Message{
				Title: title,
				Body:  body,
				Data: map[string]string{
					"sessionId": session.ID,
					"newStatus": string(newStatus),
					"timestamp": timestamp,
					"type":      notificationType,
					"userRole":  send.role,
				},
			}

			err := s.sender.Send(ctx, send.token, msg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Successes++
				metrics.NotificationSends.WithLabelValues("success").Inc()
			case push.IsInvalidToken(err):
				report.InvalidTokens++
				dead = append(dead, deadToken{userID: send.userID, token: send.token})
				metrics.NotificationSends.WithLabelValues("invalid_token").Inc()
			default:
				report.Failures++
				metrics.NotificationSends.WithLabelValues("failure").Inc()
				// No retry here; the next trigger invocation is the retry.
				s.log.Warn("push send failed",
					zap.String("session_id", session.ID),
					zap.String("user_id", send.userID),
					zap.String("error", truncateError(err)))
			}
			return nil
		})
	}
	_ = group.Wait()

	for _, token := range dead {
		if err := s.users.RemoveToken(ctx, token.userID, token.token); err != nil {
			s.log.Warn("prune invalid token failed",
				zap.String("user_id", token.userID),
				zap.Error(err))
			continue
		}
		metrics.TokensPruned.Inc()
	}

	return report, nil
}

// ResolveTargets builds the ordered, de-duplicated recipient list. The sitter
// is inserted first; an owner who is also the sitter keeps their position but
// takes the owner role, so a self-sitting owner sees owner-flavoured copy.
func ResolveTargets(session *models.Session) []PushTarget {
	targets := make([]PushTarget, 0, 2)
	index := make(map[string]int, 2)

	add := func(userID, role string) {
		if userID == "" {
			return
		}
		if i, ok := index[userID]; ok {
			targets[i].Role = role
			return
		}
		index[userID] = len(targets)
		targets = append(targets, PushTarget{UserID: userID, Role: role})
	}

	if sitter, ok := session.SitterUserID(); ok {
		add(sitter, RoleSitter)
	}
	add(strings.TrimSpace(session.OwnerUserID), RoleOwner)

	return targets
}

func notificationCopy(status models.SessionStatus, title string) (string, string, bool) {
	switch status {
	case models.StatusInProgress:
		return "Session Starting", "Your session \"" + title + "\" is starting now.", true
	case models.StatusExtended:
		return "Session Extended", "Your session \"" + title + "\" has been extended.", true
	case models.StatusCompleted:
		return "Session Completed", "Your session \"" + title + "\" has ended.", true
	default:
		return "", "", false
	}
}
