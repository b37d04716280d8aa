package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// MockJobStore implements the Store interface for testing
type MockJobStore struct {
	mutex           sync.RWMutex
	records         map[uuid.UUID]*domain.Job
	ClaimFn         func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	MarkCompletedFn func(ctx context.Context, id uuid.UUID) error
	MarkFailedFn    func(ctx context.Context, id uuid.UUID, reason string) error
	GetPendingFn    func(ctx context.Context) ([]*domain.Job, error)
	ResetFn         func(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error)
}

// NewMockJobStore creates a new MockJobStore with default implementations
// backed by an in-memory record map
func NewMockJobStore() *MockJobStore {
	s := &MockJobStore{
		records: make(map[uuid.UUID]*domain.Job),
	}

	s.ClaimFn = func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		rec, exists := s.records[id]
		if !exists {
			return nil, store.ErrJobNotFound
		}
		if rec.Status != domain.JobStatusPending {
			return nil, store.ErrClaimConflict
		}

		now := time.Now().UTC()
		rec.Status = domain.JobStatusProcessing
		rec.ClaimedAt = &now
		rec.AttemptCount++
		rec.UpdatedAt = now

		claimed := *rec
		return &claimed, nil
	}

	s.MarkCompletedFn = func(ctx context.Context, id uuid.UUID) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		rec, exists := s.records[id]
		if !exists {
			return store.ErrJobNotFound
		}
		rec.Status = domain.JobStatusCompleted
		rec.UpdatedAt = time.Now().UTC()
		return nil
	}

	s.MarkFailedFn = func(ctx context.Context, id uuid.UUID, reason string) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		rec, exists := s.records[id]
		if !exists {
			return store.ErrJobNotFound
		}
		rec.Status = domain.JobStatusFailed
		rec.LastError = &reason
		rec.UpdatedAt = time.Now().UTC()
		return nil
	}

	s.GetPendingFn = func(ctx context.Context) ([]*domain.Job, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()

		var pending []*domain.Job
		for _, rec := range s.records {
			if rec.Status == domain.JobStatusPending {
				copied := *rec
				pending = append(pending, &copied)
			}
		}

		sort.Slice(pending, func(i, j int) bool {
			if pending[i].Priority != pending[j].Priority {
				return pending[i].Priority > pending[j].Priority
			}
			return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
		})
		return pending, nil
	}

	s.ResetFn = func(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error) {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		var reset []*domain.Job
		now := time.Now().UTC()
		for _, rec := range s.records {
			if rec.Status != domain.JobStatusProcessing {
				continue
			}
			// A zero age resets every processing job, mirroring boot recovery
			if olderThan > 0 && (rec.ClaimedAt == nil || now.Sub(*rec.ClaimedAt) <= olderThan) {
				continue
			}
			rec.Status = domain.JobStatusPending
			rec.ClaimedAt = nil
			rec.UpdatedAt = now

			copied := *rec
			reset = append(reset, &copied)
		}
		return reset, nil
	}

	return s
}

// Add seeds the store with a record, used by tests to set up fixtures
func (s *MockJobStore) Add(rec *domain.Job) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *rec
	s.records[rec.ID] = &copied
}

// Get returns a copy of the stored record, used by tests to assert state
func (s *MockJobStore) Get(id uuid.UUID) (*domain.Job, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rec, exists := s.records[id]
	if !exists {
		return nil, false
	}
	copied := *rec
	return &copied, true
}

// ClaimJob atomically moves a pending job to processing
func (s *MockJobStore) ClaimJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.ClaimFn(ctx, id)
}

// MarkCompleted moves a processing job to completed
func (s *MockJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return s.MarkCompletedFn(ctx, id)
}

// MarkFailed moves a processing job to failed with the final error
func (s *MockJobStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.MarkFailedFn(ctx, id, reason)
}

// GetPendingJobs retrieves all pending jobs ordered by priority then enqueue time
func (s *MockJobStore) GetPendingJobs(ctx context.Context) ([]*domain.Job, error) {
	return s.GetPendingFn(ctx)
}

// ResetExpiredClaims moves stale processing jobs back to pending
func (s *MockJobStore) ResetExpiredClaims(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error) {
	return s.ResetFn(ctx, olderThan)
}
