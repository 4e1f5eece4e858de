package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/juryline/pkg/metrics"
)

// eventLocks hands out one mutex per event ID.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *eventLocks) get(eventID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	return m
}

// with runs fn under the event's mutex. A cancelled ctx aborts the wait.
func (l *eventLocks) with(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	m := l.get(eventID)

	start := time.Now()
	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// Release the lock once the waiter obtains it.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return fmt.Errorf("event lock %s: %w", eventID, ctx.Err())
	}
	defer m.Unlock()

	metrics.RecordStoreLockWait(float64(time.Since(start).Microseconds()) / 1000)
	return fn(ctx)
}
