package job

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the JobQueue
var (
	ErrQueueClosed   = errors.New("job queue is closed")
	ErrQueueFull     = errors.New("job queue is full")
	ErrDuplicateNote = errors.New("a job for this note is already queued")
)

// queueItem wraps a job with the sequence number that breaks ordering ties,
// so two jobs enqueued at the same timestamp still dequeue in submission order.
type queueItem struct {
	job Job
	seq uint64
}

// jobHeap orders items by priority (highest first), then enqueue time, then
// submission sequence.
type jobHeap []*queueItem

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.job.Priority() != b.job.Priority() {
		return a.job.Priority() > b.job.Priority()
	}
	if !a.job.EnqueuedAt().Equal(b.job.EnqueuedAt()) {
		return a.job.EnqueuedAt().Before(b.job.EnqueuedAt())
	}
	return a.seq < b.seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*queueItem))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// JobQueue is a bounded, priority-ordered queue satisfying both QueueReader
// and QueueWriter. Within a priority level jobs dequeue in FIFO order. A note
// can have at most one queued job at a time; enqueueing a second one fails
// with ErrDuplicateNote so callers can treat it as an idempotent no-op.
type JobQueue struct {
	mu      sync.Mutex
	items   jobHeap
	byNote  map[uuid.UUID]struct{}
	notify  chan struct{}
	maxSize int
	seq     uint64
	closed  bool
	logger  *slog.Logger
}

// NewJobQueue creates a new job queue holding at most size jobs.
func NewJobQueue(size int, logger *slog.Logger) *JobQueue {
	return &JobQueue{
		items:   make(jobHeap, 0, size),
		byNote:  make(map[uuid.UUID]struct{}),
		notify:  make(chan struct{}, 1),
		maxSize: size,
		logger:  logger,
	}
}

// Enqueue adds a job to the queue for processing.
// Returns ErrQueueClosed, ErrQueueFull, or ErrDuplicateNote when the job's
// note already has a queued job.
func (q *JobQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, dup := q.byNote[job.NoteID()]; dup {
		return fmt.Errorf("%w: note %s", ErrDuplicateNote, job.NoteID())
	}
	if len(q.items) >= q.maxSize {
		return fmt.Errorf("%w: at capacity %d", ErrQueueFull, q.maxSize)
	}

	q.seq++
	heap.Push(&q.items, &queueItem{job: job, seq: q.seq})
	q.byNote[job.NoteID()] = struct{}{}

	q.logger.Debug("job enqueued",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"priority", job.Priority(),
		"queue_len", len(q.items),
		"queue_cap", q.maxSize)

	q.wake()
	return nil
}

// Dequeue removes and returns the highest priority job, blocking until one is
// available. It returns ctx.Err() when the context ends and ErrQueueClosed
// once the queue is closed and drained.
func (q *JobQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := heap.Pop(&q.items).(*queueItem)
			delete(q.byNote, item.job.NoteID())
			if len(q.items) > 0 {
				// Pass the wakeup on so other waiting workers drain the rest.
				q.wake()
			}
			q.mu.Unlock()
			return item.job, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of jobs currently waiting.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close closes the job queue, preventing further job submission. Jobs already
// queued can still be dequeued; blocked Dequeue calls return ErrQueueClosed
// once the queue is drained.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.notify)
		q.logger.Info("job queue closed")
	}
}

// wake signals one waiting Dequeue without blocking. Callers must hold q.mu,
// which also keeps the send from racing Close.
func (q *JobQueue) wake() {
	if q.closed {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
