// Package repository holds event snapshots: events, criteria, submissions,
// judges, assignments and reviews.
package repository

import (
	"context"

	"github.com/okian/juryline/internal/domain/model"
)

// Counts is the number of records of each kind held by a store.
type Counts struct {
	Events      int `json:"events"`
	Criteria    int `json:"criteria"`
	Submissions int `json:"submissions"`
	Judges      int `json:"judges"`
	Assignments int `json:"assignments"`
	Reviews     int `json:"reviews"`
}

// Store provides read/write access to event state. Lifecycle rules live in
// the application layer; the store enforces identity and referential rules
// only.
type Store interface {
	// CreateEvent stores a new event. Returns ErrConflict for a duplicate ID.
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)
	// GetEvent returns ErrNotFound for an unknown event.
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	// ListEvents returns events ordered by creation time.
	ListEvents(ctx context.Context) ([]model.Event, error)
	// UpdateEvent replaces the stored event.
	UpdateEvent(ctx context.Context, ev model.Event) error

	AddCriterion(ctx context.Context, c model.Criterion) (model.Criterion, error)
	// AddSubmission returns ErrConflict when the participant already submitted.
	AddSubmission(ctx context.Context, s model.Submission) (model.Submission, error)
	// PutJudge creates or replaces an event-judge membership.
	PutJudge(ctx context.Context, j model.EventJudge) (model.EventJudge, error)
	// GetJudge returns ErrNotFound when the judge was never invited.
	GetJudge(ctx context.Context, eventID, judgeID string) (model.EventJudge, error)
	// AddAssignments stores assignments atomically. Returns ErrConflict if any
	// (judge, submission) pair already exists.
	AddAssignments(ctx context.Context, eventID string, as []model.Assignment) error
	// UpsertReview stores r, or updates the existing review for the same
	// (submission, judge) keeping its ID and CreatedAt. created reports
	// whether a new review was stored.
	UpsertReview(ctx context.Context, r model.Review) (stored model.Review, created bool, err error)

	// Snapshot materializes everything the report packages need for one
	// event. The result shares no memory with the store.
	Snapshot(ctx context.Context, eventID string) (model.Snapshot, error)

	// WithEventLock runs fn while holding the event's write lock. Writers
	// that read-then-write (planner runs, lifecycle changes) use it.
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context) error) error

	Counts(ctx context.Context) Counts
	Close() error
}
