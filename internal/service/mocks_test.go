package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/events"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// noTx runs the transactional function directly, standing in for
// store.RunInTransaction in tests. Mock stores ignore the nil transaction.
func noTx(ctx context.Context, db *sql.DB, fn store.TxFn) error {
	return fn(ctx, nil)
}

// mockNoteStore implements store.NoteStore over an in-memory map with
// overridable function fields.
type mockNoteStore struct {
	mu       sync.Mutex
	notes    map[uuid.UUID]*domain.Note
	CreateFn func(ctx context.Context, note *domain.Note) error
	GetFn    func(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	UpdateFn func(ctx context.Context, note *domain.Note) error
	updates  int
}

func newMockNoteStore(seed ...*domain.Note) *mockNoteStore {
	s := &mockNoteStore{notes: make(map[uuid.UUID]*domain.Note)}
	for _, note := range seed {
		copied := *note
		s.notes[note.ID] = &copied
	}
	return s
}

func (s *mockNoteStore) Create(ctx context.Context, note *domain.Note) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, note)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *note
	s.notes[note.ID] = &copied
	return nil
}

func (s *mockNoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNoteNotFound
	}
	copied := *note
	return &copied, nil
}

func (s *mockNoteStore) Update(ctx context.Context, note *domain.Note) error {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, note)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[note.ID]; !ok {
		return store.ErrNoteNotFound
	}
	copied := *note
	s.notes[note.ID] = &copied
	s.updates++
	return nil
}

func (s *mockNoteStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NoteStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return store.ErrNoteNotFound
	}
	note.Status = status
	return nil
}

func (s *mockNoteStore) WithTx(tx *sql.Tx) store.NoteStore { return s }

// Stored returns a copy of the stored note, used by tests to assert state.
func (s *mockNoteStore) Stored(id uuid.UUID) (*domain.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return nil, false
	}
	copied := *note
	return &copied, true
}

// mockTaskStore implements store.TaskStore, journaling every call.
type mockTaskStore struct {
	mu            sync.Mutex
	tasks         map[uuid.UUID][]*domain.NoteTask
	CreateBatchFn func(ctx context.Context, tasks []*domain.NoteTask) error
	DeleteFn      func(ctx context.Context, noteID uuid.UUID) error
	ListFn        func(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error)
	journal       []string
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID][]*domain.NoteTask)}
}

func (s *mockTaskStore) CreateBatch(ctx context.Context, tasks []*domain.NoteTask) error {
	if s.CreateBatchFn != nil {
		return s.CreateBatchFn(ctx, tasks)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, "create_batch")
	for _, task := range tasks {
		s.tasks[task.NoteID] = append(s.tasks[task.NoteID], task)
	}
	return nil
}

func (s *mockTaskStore) DeleteByNoteID(ctx context.Context, noteID uuid.UUID) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, noteID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, "delete_by_note_id")
	delete(s.tasks, noteID)
	return nil
}

func (s *mockTaskStore) ListByNoteID(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, noteID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.NoteTask{}, s.tasks[noteID]...), nil
}

func (s *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return s }

func (s *mockTaskStore) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.journal...)
}

// mockJobStore implements store.JobStore for service tests. It enforces the
// one active job per note rule the way the partial unique index does.
type mockJobStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*domain.Job
	CreateJobFn func(ctx context.Context, job *domain.Job) error
	GetActiveFn func(ctx context.Context, noteID uuid.UUID) (*domain.Job, error)
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *mockJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if s.CreateJobFn != nil {
		return s.CreateJobFn(ctx, job)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.NoteID == job.NoteID && existing.IsActive() {
			return store.ErrActiveJobExists
		}
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *mockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *mockJobStore) GetActiveByNoteID(ctx context.Context, noteID uuid.UUID) (*domain.Job, error) {
	if s.GetActiveFn != nil {
		return s.GetActiveFn(ctx, noteID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.NoteID == noteID && job.IsActive() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, store.ErrJobNotFound
}

func (s *mockJobStore) ClaimJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return nil, store.ErrClaimConflict
}

func (s *mockJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error { return nil }

func (s *mockJobStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (s *mockJobStore) GetPendingJobs(ctx context.Context) ([]*domain.Job, error) {
	return []*domain.Job{}, nil
}

func (s *mockJobStore) ResetExpiredClaims(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error) {
	return []*domain.Job{}, nil
}

func (s *mockJobStore) WithTx(tx *sql.Tx) store.JobStore { return s }

// Stored returns a copy of the stored job record.
func (s *mockJobStore) Stored(id uuid.UUID) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// Add seeds the store with a job record.
func (s *mockJobStore) Add(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
}

// mockEmitter implements events.EventEmitter, remembering emitted events.
type mockEmitter struct {
	mu          sync.Mutex
	EmitEventFn func(ctx context.Context, event *events.JobRequestEvent) error
	emitted     []*events.JobRequestEvent
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.JobRequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	m.emitted = append(m.emitted, event)
	return nil
}

func (m *mockEmitter) Emitted() []*events.JobRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*events.JobRequestEvent, len(m.emitted))
	copy(out, m.emitted)
	return out
}
