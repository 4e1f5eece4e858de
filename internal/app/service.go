// Package service is the application layer behind the HTTP API: event
// lifecycle, review ingestion, assignment planning and the scoring reports.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/juryline/internal/adapters/mq/notify"
	"github.com/okian/juryline/internal/adapters/mq/queue"
	"github.com/okian/juryline/internal/adapters/mq/worker"
	"github.com/okian/juryline/internal/adapters/repository"
	"github.com/okian/juryline/internal/domain/bias"
	"github.com/okian/juryline/internal/domain/dedupe"
	"github.com/okian/juryline/internal/domain/scoring"
	"github.com/okian/juryline/pkg/logger"
	"github.com/okian/juryline/pkg/metrics"
)

const (
	tracerName              = "github.com/okian/juryline/internal/app"
	defaultQueueSize        = 10000
	defaultDedupeSize       = 50000
	defaultLeaderboardTTL   = 5 * time.Second
	defaultWorkerMultiplier = 2
)

// Service implements the API dependencies for event judging.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	deduper  dedupe.Deduper
	queue    queue.Queue
	pool     *worker.Pool
	notifier notify.Notifier
	cache    *leaderboardCache
	tracer   trace.Tracer

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	biasThreshold  float64
	tolerance      float64
	leaderboardTTL time.Duration
	now            func() time.Time
	newID          func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the review queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many review idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBiasThreshold sets the default outlier multiplier.
func WithBiasThreshold(multiplier float64) Option {
	return func(s *Service) {
		if multiplier >= 0 {
			s.biasThreshold = multiplier
		}
	}
}

// WithIntegrityTolerance sets the out-of-scale tolerance as a fraction of a
// criterion's span.
func WithIntegrityTolerance(tolerance float64) Option {
	return func(s *Service) {
		if tolerance >= 0 {
			s.tolerance = tolerance
		}
	}
}

// WithLeaderboardCacheTTL sets how long a computed leaderboard is reused.
// Zero disables caching; concurrent requests are still coalesced.
func WithLeaderboardCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.leaderboardTTL = ttl
		}
	}
}

// WithNotifier sets where new assignments are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for report spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the random ID source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		notifier:       notify.Nop{},
		workerCount:    runtime.NumCPU() * defaultWorkerMultiplier,
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		biasThreshold:  bias.DefaultThreshold,
		tolerance:      scoring.DefaultTolerance,
		leaderboardTTL: defaultLeaderboardTTL,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.cache = newLeaderboardCache(s.leaderboardTTL, s.now)
	return s
}

// Start creates the ingestion pipeline and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		return fmt.Errorf("%w: nil store", ErrInvalidInput)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "juryline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("biasThreshold", s.biasThreshold),
		logger.Duration("leaderboardTTL", s.leaderboardTTL),
	)
	return nil
}

// Stop drains the review queue, then closes the notifier and the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping juryline service...")

	var firstErr error
	if err := s.pool.Shutdown(ctx); err != nil {
		firstErr = err
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.notifier.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.started = false
	s.logger.Info(ctx, "juryline service stopped")
	return firstErr
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"biasThreshold":  s.biasThreshold,
		"cachedBoards":   s.cache.size(),
		"leaderboardTTL": s.leaderboardTTL.String(),
	}

	if s.started {
		processed, failed := s.pool.Processed()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		stats["reviewsProcessed"] = processed
		stats["reviewsFailed"] = failed
		stats["store"] = s.store.Counts(ctx)
	}
	return stats
}

func (s *Service) startSpan(ctx context.Context, name, eventID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("event.id", eventID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get().Named("service")
	}
	return s.logger
}

func (s *Service) reportIssues(ctx context.Context, report, eventID string, issues []scoring.IntegrityIssue) {
	if len(issues) == 0 {
		return
	}
	for kind, n := range scoring.CountByKind(issues) {
		metrics.RecordIntegrityIssues(string(kind), n)
	}
	s.log().Warn(ctx, "skipped inconsistent review data",
		logger.String("report", report),
		logger.String("event_id", eventID),
		logger.Int("issues", len(issues)),
		logger.Error(issues[0]),
	)
}
