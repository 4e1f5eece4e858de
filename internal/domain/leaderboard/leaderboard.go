// Package leaderboard ranks an event's submissions by weighted score.
//
// Ordering: weighted score DESC, then review count DESC, then creation time
// ASC, then submission ID ASC. Ranks compare the display-rounded score, so
// entries that round alike share a rank. Unscored submissions follow every
// scored one, ordered by creation time.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/scoring"
	"github.com/okian/juryline/internal/domain/types"
)

// Option configures Build.
type Option func(*builder)

type builder struct {
	sanitizer *scoring.Sanitizer
}

// WithTolerance sets the out-of-scale tolerance used to reject review data.
func WithTolerance(tolerance float64) Option {
	return func(b *builder) {
		b.sanitizer = scoring.NewSanitizer(scoring.WithTolerance(tolerance))
	}
}

// Result is a computed leaderboard.
type Result struct {
	EventID  string                   `json:"event_id"`
	Criteria []model.Criterion        `json:"criteria"`
	Entries  []types.LeaderboardEntry `json:"entries"`
	Issues   []scoring.IntegrityIssue `json:"issues,omitempty"`
}

// Scored returns the ranked entries.
func (r Result) Scored() []types.LeaderboardEntry {
	n := 0
	for n < len(r.Entries) && r.Entries[n].Scored {
		n++
	}
	return r.Entries[:n]
}

// Unscored returns the "not yet scored" tail.
func (r Result) Unscored() []types.LeaderboardEntry {
	return r.Entries[len(r.Scored()):]
}

// Top returns at most n entries from the head of the leaderboard.
func (r Result) Top(n int) []types.LeaderboardEntry {
	if n < 0 || n >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[:n]
}

// Build computes the leaderboard for one event. Reviews whose submission is
// not in submissions, and score keys that contradict the criteria, are
// skipped and reported in Result.Issues.
func Build(event *model.Event, criteria []model.Criterion, submissions []model.Submission, reviews []model.Review, opts ...Option) (Result, error) {
	if event == nil {
		return Result{}, fmt.Errorf("%w: nil event", ErrInvalidInput)
	}
	if criteria == nil {
		return Result{}, fmt.Errorf("%w: nil criteria for event %s", ErrInvalidInput, event.ID)
	}

	b := &builder{sanitizer: scoring.NewSanitizer()}
	for _, opt := range opts {
		opt(b)
	}

	ordered := append([]model.Criterion(nil), criteria...)
	model.SortCriteria(ordered)

	clean, issues := b.sanitizer.Sanitize(ordered, reviews)

	bySubmission := make(map[string][]model.Review, len(submissions))
	known := make(map[string]struct{}, len(submissions))
	for _, s := range submissions {
		known[s.ID] = struct{}{}
	}
	for _, r := range clean {
		if _, ok := known[r.SubmissionID]; !ok {
			issues = append(issues, scoring.IntegrityIssue{
				Kind:         scoring.IssueUnknownSubmission,
				ReviewID:     r.ID,
				SubmissionID: r.SubmissionID,
				JudgeID:      r.JudgeID,
			})
			continue
		}
		bySubmission[r.SubmissionID] = append(bySubmission[r.SubmissionID], r)
	}

	entries := make([]types.LeaderboardEntry, 0, len(submissions))
	for _, s := range submissions {
		rs := bySubmission[s.ID]
		aggs := scoring.AggregateAll(ordered, rs)
		e := types.LeaderboardEntry{
			SubmissionID:  s.ID,
			ParticipantID: s.ParticipantID,
			ReviewCount:   len(rs),
			CreatedAt:     s.CreatedAt,
			Criteria:      aggs,
		}
		if score := scoring.ScoreSubmission(ordered, aggs); score != nil {
			display := scoring.RoundDisplay(*score)
			e.WeightedScore = score
			e.DisplayScore = &display
			e.Scored = true
		}
		entries = append(entries, e)
	}

	sortEntries(entries)
	assignRanks(entries)

	return Result{
		EventID:  event.ID,
		Criteria: ordered,
		Entries:  entries,
		Issues:   issues,
	}, nil
}

func sortEntries(entries []types.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Scored != b.Scored {
			return a.Scored
		}
		if a.Scored {
			if *a.WeightedScore != *b.WeightedScore {
				return *a.WeightedScore > *b.WeightedScore
			}
			if a.ReviewCount != b.ReviewCount {
				return a.ReviewCount > b.ReviewCount
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.SubmissionID < b.SubmissionID
	})
}

// assignRanks applies standard competition ranking (1, 1, 3) over the
// display scores of sorted entries. Unscored entries keep rank 0.
func assignRanks(entries []types.LeaderboardEntry) {
	for i := range entries {
		if !entries[i].Scored {
			return
		}
		if i > 0 && *entries[i].DisplayScore == *entries[i-1].DisplayScore {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
