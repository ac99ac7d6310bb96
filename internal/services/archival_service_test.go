package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
)

type fakeArchiveStore struct {
	candidates   []models.Session
	candidateErr error

	batches   [][]models.Session
	failBatch map[int]error
}

func (s *fakeArchiveStore) ArchiveCandidates(context.Context, time.Time) ([]models.Session, error) {
	return s.candidates, s.candidateErr
}

func (s *fakeArchiveStore) ArchiveBatch(_ context.Context, sessions []models.Session, _ time.Time) (int, error) {
	index := len(s.batches)
	s.batches = append(s.batches, sessions)
	if err, ok := s.failBatch[index]; ok {
		return 0, err
	}
	return len(sessions), nil
}

func archiveCandidates(n int) []models.Session {
	out := make([]models.Session, n)
	for i := range out {
		out[i] = models.Session{ID: string(rune('a' + i)), Status: models.StatusCompleted}
	}
	return out
}

func TestRunArchivalSweepChunksCandidates(t *testing.T) {
	fake := &fakeArchiveStore{candidates: archiveCandidates(5)}
	svc, err := NewArchivalService(fake, WithArchiveChunkSize(2))
	require.NoError(t, err)

	result, err := svc.RunArchivalSweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 5, result.Archived)
	require.Zero(t, result.FailedChunks)
	require.Len(t, fake.batches, 3)
	require.Len(t, fake.batches[0], 2)
	require.Len(t, fake.batches[2], 1)
}

func TestRunArchivalSweepDefersFailedChunks(t *testing.T) {
	fake := &fakeArchiveStore{
		candidates: archiveCandidates(6),
		failBatch:  map[int]error{1: errors.New("tx aborted")},
	}
	svc, err := NewArchivalService(fake, WithArchiveChunkSize(2))
	require.NoError(t, err)

	result, err := svc.RunArchivalSweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 4, result.Archived)
	require.Equal(t, 1, result.FailedChunks)
	require.Len(t, fake.batches, 3, "a failed chunk must not be retried within the sweep")
}

func TestRunArchivalSweepNoCandidates(t *testing.T) {
	svc, err := NewArchivalService(&fakeArchiveStore{})
	require.NoError(t, err)

	result, err := svc.RunArchivalSweep(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, result.Archived)
}

func TestRunArchivalSweepCandidateErrorIsFatal(t *testing.T) {
	svc, err := NewArchivalService(&fakeArchiveStore{candidateErr: errors.New("db down")})
	require.NoError(t, err)

	_, err = svc.RunArchivalSweep(context.Background(), time.Now())
	require.Error(t, err)
}
