package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
	"github.com/coltonswapp/nest-note-sub009/pkg/metrics"
)

const (
	// DefaultRetention is how long a completed session stays queryable in the
	// live table before the daily sweep moves it to the archive.
	DefaultRetention = 7 * 24 * time.Hour

	defaultArchiveChunkSize = 100
)

// ArchiveStore is the slice of the session store the archival sweep needs.
type ArchiveStore interface {
	ArchiveCandidates(ctx context.Context, cutoff time.Time) ([]models.Session, error)
	ArchiveBatch(ctx context.Context, sessions []models.Session, archivedAt time.Time) (int, error)
}

// ArchiveResult summarises one archival sweep.
type ArchiveResult struct {
	Archived     int `json:"archived"`
	FailedChunks int `json:"failed_chunks"`
}

// ArchivalService moves long-completed sessions out of the live table.
type ArchivalService struct {
	sessions  ArchiveStore
	retention time.Duration
	chunkSize int
	log       *zap.Logger
}

// ArchivalOption customises the archival sweep.
type ArchivalOption func(*ArchivalService)

// WithRetention overrides how long completed sessions stay live.
func WithRetention(retention time.Duration) ArchivalOption {
	return func(s *ArchivalService) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithArchiveChunkSize overrides how many sessions move per transaction.
func WithArchiveChunkSize(size int) ArchivalOption {
	return func(s *ArchivalService) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// NewArchivalService constructs an ArchivalService.
func NewArchivalService(sessions ArchiveStore, opts ...ArchivalOption) (*ArchivalService, error) {
	if sessions == nil {
		return nil, errors.New("archival service: session store is required")
	}

	svc := &ArchivalService{
		sessions:  sessions,
		retention: DefaultRetention,
		chunkSize: defaultArchiveChunkSize,
		log:       logger.WithModule("archival"),
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// RunArchivalSweep moves every session that has been completed for longer than
// the retention window into the archive table. Candidates are fetched once and
// moved in fixed-size chunks; a chunk that fails is logged and left for the
// next daily run rather than retried in a loop.
func (s *ArchivalService) RunArchivalSweep(ctx context.Context, now time.Time) (ArchiveResult, error) {
	var result ArchiveResult
	ctx = ensureContext(ctx)
	started := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("archival").Observe(time.Since(started).Seconds())
	}()

	cutoff := now.Add(-s.retention)
	candidates, err := s.sessions.ArchiveCandidates(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("archival service: query candidates: %w", err)
	}
	if len(candidates) == 0 {
		s.log.Debug("no sessions due for archival", zap.Time("cutoff", cutoff))
		return result, nil
	}

	for start := 0; start < len(candidates); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		moved, err := s.sessions.ArchiveBatch(ctx, chunk, now)
		if err != nil {
			result.FailedChunks++
			s.log.Warn("archive chunk failed; deferring to next sweep",
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err))
			continue
		}
		result.Archived += moved
		metrics.SessionsArchived.Add(float64(moved))
	}

	s.log.Info("archival sweep finished",
		zap.Int("archived", result.Archived),
		zap.Int("failed_chunks", result.FailedChunks),
		zap.Time("cutoff", cutoff))

	return result, nil
}
