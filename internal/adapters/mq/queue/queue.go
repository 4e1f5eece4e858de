// Package queue is the bounded in-memory buffer between review submission
// and the ingestion workers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Message is a review waiting to be persisted. Key is the idempotency key
// recorded at submission time.
type Message struct {
	Key        string
	Review     model.Review
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. It returns false when the queue is full,
	// closed or ctx is done.
	Enqueue(ctx context.Context, m Message) bool

	// Dequeue returns a channel that receives messages until the queue is
	// closed or ctx is done.
	Dequeue(ctx context.Context) <-chan Message

	Len(ctx context.Context) int
	Capacity() int

	// Close stops accepting messages; buffered ones are still delivered.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.publishSize()
	return q
}

func (q *InMemoryQueue) publishSize() {
	size := len(q.messages)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Enqueue adds a message to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	}
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now()
	}

	select {
	case q.messages <- m:
		metrics.RecordQueueEnqueue()
		q.publishSize()
		return true
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive messages as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				metrics.RecordQueueDequeue()
				q.publishSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.publishSize()
	return len(q.messages)
}

// Capacity returns the maximum number of buffered messages.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
