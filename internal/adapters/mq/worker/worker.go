// Package worker drains the review queue and hands each review to an
// Ingester.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/juryline/internal/adapters/mq/queue"
	"github.com/okian/juryline/pkg/logger"
	"github.com/okian/juryline/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Ingester persists one queued review.
type Ingester interface {
	Ingest(ctx context.Context, m queue.Message) error
}

// IngesterFunc adapts a function to Ingester.
type IngesterFunc func(ctx context.Context, m queue.Message) error

// Ingest calls f.
func (f IngesterFunc) Ingest(ctx context.Context, m queue.Message) error { return f(ctx, m) }

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Worker processes queued reviews.
type Worker interface {
	// Run processes messages until the queue is drained and closed, ctx is
	// canceled or Shutdown is called.
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	ingester    Ingester
	name        string
	onProcessed func(err error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, ingester Ingester, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		ingester: ingester,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			err := w.process(ctx, m)
			if err != nil {
				w.logger.Error(ctx, "review ingestion failed",
					logger.String("worker", w.name),
					logger.String("review_id", m.Review.ID),
					logger.String("submission_id", m.Review.SubmissionID),
					logger.String("judge_id", m.Review.JudgeID),
					logger.Error(err),
				)
			}
			if w.onProcessed != nil {
				w.onProcessed(err)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, m queue.Message) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.ingester.Ingest(ctx, m); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ingest")
		return fmt.Errorf("ingest review %s: %w", m.Review.ID, err)
	}
	return nil
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a worker pool. A count below 1 selects a CPU-based default.
func NewPool(workerCount int, q Queue, ingester Ingester) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, ingester,
			WithName("worker-"+strconv.Itoa(i)),
			WithOnProcessed(p.record),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

func (p *Pool) record(err error) {
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many messages were handled and how many failed.
func (p *Pool) Processed() (total, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue so workers drain what is buffered, then waits
// for them. Workers still running when ctx (bounded by poolShutdownTimeout)
// ends are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
		}
	}

	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
	}
	return nil
}
