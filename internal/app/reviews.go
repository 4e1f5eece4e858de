package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/juryline/internal/adapters/mq/queue"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
	"github.com/okian/juryline/pkg/metrics"
)

// ReviewInput is a judge's scores for one submission. IdempotencyKey is
// optional; without it identical resubmissions are recognized by content.
type ReviewInput struct {
	SubmissionID   string
	JudgeID        string
	Scores         map[string]float64
	Notes          string
	IdempotencyKey string
}

// SubmitResult acknowledges a review submission.
type SubmitResult struct {
	Key       string `json:"key"`
	Duplicate bool   `json:"duplicate"`
}

// SubmitReview validates a review and queues it for ingestion. It returns
// ErrBackpressure when the queue is full.
func (s *Service) SubmitReview(ctx context.Context, eventID string, in ReviewInput) (SubmitResult, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return SubmitResult{}, ErrNotStarted
	}

	ctx, span := s.startSpan(ctx, "service.SubmitReview", eventID)
	res, err := s.submitReview(ctx, eventID, in)
	endSpan(span, err)
	return res, err
}

func (s *Service) submitReview(ctx context.Context, eventID string, in ReviewInput) (SubmitResult, error) {
	if in.SubmissionID == "" || in.JudgeID == "" {
		metrics.RecordReviewRejected("bad_request")
		return SubmitResult{}, fmt.Errorf("%w: submission_id and judge_id are required", ErrInvalidInput)
	}

	snap, err := s.store.Snapshot(ctx, eventID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit review for %s: %w", eventID, err)
	}
	if !snap.Event.Status.AcceptsReviews() {
		metrics.RecordReviewRejected("event_status")
		return SubmitResult{}, fmt.Errorf("%w: event is %s", model.ErrEventNotAcceptingReviews, snap.Event.Status)
	}
	if !assigned(snap.Assignments, in.JudgeID, in.SubmissionID) {
		metrics.RecordReviewRejected("not_assigned")
		return SubmitResult{}, fmt.Errorf("%w: judge %s, submission %s", model.ErrNotAssigned, in.JudgeID, in.SubmissionID)
	}
	if err := model.ValidateScores(snap.Criteria, in.Scores); err != nil {
		metrics.RecordReviewRejected("invalid_scores")
		return SubmitResult{}, err
	}

	key := in.IdempotencyKey
	if key == "" {
		key = fingerprint(eventID, in)
	}
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordReviewDuplicate()
		return SubmitResult{Key: key, Duplicate: true}, nil
	}

	now := s.now()
	m := queue.Message{
		Key: key,
		Review: model.Review{
			ID:           s.newID(),
			EventID:      eventID,
			SubmissionID: in.SubmissionID,
			JudgeID:      in.JudgeID,
			Scores:       in.Scores,
			Notes:        in.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if !s.queue.Enqueue(ctx, m) {
		s.deduper.Unrecord(ctx, key)
		metrics.RecordReviewRejected("backpressure")
		return SubmitResult{}, ErrBackpressure
	}
	return SubmitResult{Key: key}, nil
}

// Ingest persists a queued review. It is called by the worker pool.
func (s *Service) Ingest(ctx context.Context, m queue.Message) error { //nolint:gocritic // hugeParam: matches worker.Ingester
	stored, created, err := s.store.UpsertReview(ctx, m.Review)
	if err != nil {
		// Allow the judge to retry the same submission.
		s.deduper.Unrecord(ctx, m.Key)
		return fmt.Errorf("store review: %w", err)
	}
	s.cache.invalidate(stored.EventID)
	metrics.RecordReviewIngested()
	if strings.HasPrefix(m.Key, fingerprintPrefix) {
		// Content keys only cover reviews still in flight.
		s.deduper.Unrecord(ctx, m.Key)
	}

	s.log().Debug(ctx, "review ingested",
		logger.String("event_id", stored.EventID),
		logger.String("review_id", stored.ID),
		logger.String("judge_id", stored.JudgeID),
		logger.String("submission_id", stored.SubmissionID),
		logger.Bool("created", created),
	)
	return nil
}

func assigned(as []model.Assignment, judgeID, submissionID string) bool {
	for _, a := range as {
		if a.JudgeID == judgeID && a.SubmissionID == submissionID {
			return true
		}
	}
	return false
}

const fingerprintPrefix = "fp:"

// fingerprint identifies a review by event, pair, scores and notes.
func fingerprint(eventID string, in ReviewInput) string {
	keys := make([]string, 0, len(in.Scores))
	for k := range in.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fingerprintPrefix)
	b.WriteString(eventID)
	b.WriteByte('|')
	b.WriteString(model.PairKey(in.JudgeID, in.SubmissionID))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(in.Scores[k], 'g', -1, 64))
	}
	b.WriteByte('|')
	b.WriteString(in.Notes)
	return b.String()
}
