package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/metrics"
)

// eventState is everything stored for one event.
type eventState struct {
	event        model.Event
	criteria     []model.Criterion
	submissions  []model.Submission
	participants map[string]string // participant ID -> submission ID
	judges       map[string]model.EventJudge
	assignments  []model.Assignment
	pairs        map[string]struct{}
	reviews      map[string]model.Review // pair key -> review
}

// MemoryStore is an in-memory Store guarded by one RWMutex plus a mutex
// per event for WithEventLock.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*eventState
	locks  *eventLocks
	opts   storeOptions
	closed bool

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a memory store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &MemoryStore{
		events:   make(map[string]*eventState),
		locks:    newEventLocks(),
		opts:     o,
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics updater. Further calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) state(eventID string) (*eventState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	st, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return st, nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Event{}, ErrClosed
	}
	if _, exists := s.events[ev.ID]; exists {
		return model.Event{}, fmt.Errorf("event %s: %w", ev.ID, ErrConflict)
	}
	s.events[ev.ID] = &eventState{
		event:        ev,
		participants: make(map[string]string),
		judges:       make(map[string]model.EventJudge),
		pairs:        make(map[string]struct{}),
		reviews:      make(map[string]model.Review),
	}
	return ev, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(eventID)
	if err != nil {
		return model.Event{}, err
	}
	return st.event, nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Event, 0, len(s.events))
	for _, st := range s.events {
		out = append(out, st.event)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(ev.ID)
	if err != nil {
		return err
	}
	st.event = ev
	return nil
}

func (s *MemoryStore) AddCriterion(_ context.Context, c model.Criterion) (model.Criterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(c.EventID)
	if err != nil {
		return model.Criterion{}, err
	}
	for _, existing := range st.criteria {
		if existing.ID == c.ID {
			return model.Criterion{}, fmt.Errorf("criterion %s: %w", c.ID, ErrConflict)
		}
	}
	st.criteria = append(st.criteria, c)
	return c, nil
}

func (s *MemoryStore) AddSubmission(_ context.Context, sub model.Submission) (model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(sub.EventID)
	if err != nil {
		return model.Submission{}, err
	}
	if prev, dup := st.participants[sub.ParticipantID]; dup {
		return model.Submission{}, fmt.Errorf("participant %s already submitted %s: %w", sub.ParticipantID, prev, ErrConflict)
	}
	for _, existing := range st.submissions {
		if existing.ID == sub.ID {
			return model.Submission{}, fmt.Errorf("submission %s: %w", sub.ID, ErrConflict)
		}
	}
	st.submissions = append(st.submissions, sub)
	st.participants[sub.ParticipantID] = sub.ID
	return sub, nil
}

func (s *MemoryStore) PutJudge(_ context.Context, j model.EventJudge) (model.EventJudge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(j.EventID)
	if err != nil {
		return model.EventJudge{}, err
	}
	st.judges[j.JudgeID] = j
	return j, nil
}

func (s *MemoryStore) GetJudge(_ context.Context, eventID, judgeID string) (model.EventJudge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(eventID)
	if err != nil {
		return model.EventJudge{}, err
	}
	j, ok := st.judges[judgeID]
	if !ok {
		return model.EventJudge{}, fmt.Errorf("judge %s in event %s: %w", judgeID, eventID, ErrNotFound)
	}
	return j, nil
}

func (s *MemoryStore) AddAssignments(_ context.Context, eventID string, as []model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(eventID)
	if err != nil {
		return err
	}
	batch := make(map[string]struct{}, len(as))
	for _, a := range as {
		key := a.Key()
		if _, dup := st.pairs[key]; dup {
			return fmt.Errorf("assignment %s: %w", key, ErrConflict)
		}
		if _, dup := batch[key]; dup {
			return fmt.Errorf("assignment %s repeated in batch: %w", key, ErrConflict)
		}
		batch[key] = struct{}{}
	}
	for _, a := range as {
		st.pairs[a.Key()] = struct{}{}
		st.assignments = append(st.assignments, a)
	}
	return nil
}

func (s *MemoryStore) UpsertReview(_ context.Context, r model.Review) (model.Review, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(r.EventID)
	if err != nil {
		return model.Review{}, false, err
	}

	r.Scores = copyScores(r.Scores)
	key := r.Key()
	prev, exists := st.reviews[key]
	if exists {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = time.Now()
		}
	}
	st.reviews[key] = r
	return r, !exists, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, eventID string) (model.Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.state(eventID)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		Event:       st.event,
		Criteria:    append([]model.Criterion{}, st.criteria...),
		Submissions: make([]model.Submission, 0, len(st.submissions)),
		Judges:      make([]model.EventJudge, 0, len(st.judges)),
		Assignments: append([]model.Assignment{}, st.assignments...),
		Reviews:     make([]model.Review, 0, len(st.reviews)),
	}
	model.SortCriteria(snap.Criteria)
	for _, sub := range st.submissions {
		sub.FormData = copyForm(sub.FormData)
		snap.Submissions = append(snap.Submissions, sub)
	}
	for _, j := range st.judges {
		snap.Judges = append(snap.Judges, j)
	}
	sort.Slice(snap.Judges, func(i, j int) bool { return snap.Judges[i].JudgeID < snap.Judges[j].JudgeID })
	for _, r := range st.reviews {
		r.Scores = copyScores(r.Scores)
		snap.Reviews = append(snap.Reviews, r)
	}
	sort.Slice(snap.Reviews, func(i, j int) bool { return snap.Reviews[i].ID < snap.Reviews[j].ID })
	return snap, nil
}

func (s *MemoryStore) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	return s.locks.with(ctx, eventID, fn)
}

func (s *MemoryStore) Counts(_ context.Context) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Events: len(s.events)}
	for _, st := range s.events {
		c.Criteria += len(st.criteria)
		c.Submissions += len(st.submissions)
		c.Judges += len(st.judges)
		c.Assignments += len(st.assignments)
		c.Reviews += len(st.reviews)
	}
	return c
}

// startMetricsUpdater publishes record counts until ctx is done or the
// store is closed.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				publishCounts(s.Counts(ctx))
			}
		}
	}()
}

func publishCounts(c Counts) {
	metrics.UpdateStoreRecords("events", c.Events)
	metrics.UpdateStoreRecords("criteria", c.Criteria)
	metrics.UpdateStoreRecords("submissions", c.Submissions)
	metrics.UpdateStoreRecords("judges", c.Judges)
	metrics.UpdateStoreRecords("assignments", c.Assignments)
	metrics.UpdateStoreRecords("reviews", c.Reviews)
}

func copyScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyForm(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
