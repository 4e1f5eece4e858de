package model

import (
	"fmt"
	"sort"
	"time"
)

// Review is one judge's scores for one submission, keyed by criterion ID.
// At most one review exists per (submission, judge).
type Review struct {
	ID           string             `json:"id" yaml:"id"`
	EventID      string             `json:"event_id" yaml:"event_id"`
	SubmissionID string             `json:"submission_id" yaml:"submission_id"`
	JudgeID      string             `json:"judge_id" yaml:"judge_id"`
	Scores       map[string]float64 `json:"scores" yaml:"scores"`
	Notes        string             `json:"notes,omitempty" yaml:"notes"`
	CreatedAt    time.Time          `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" yaml:"updated_at"`
}

// Key returns the (judge, submission) pair key of the review.
func (r Review) Key() string { return PairKey(r.JudgeID, r.SubmissionID) }

// ValidateScores checks a score mapping at write time: every key must name a
// known criterion, every value must lie within the criterion's scale and
// every criterion must be scored.
func ValidateScores(criteria []Criterion, scores map[string]float64) error {
	byID := make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		c, ok := byID[k]
		if !ok {
			return fmt.Errorf("%w: unknown criterion %q", ErrInvalidScores, k)
		}
		v := scores[k]
		if v < c.ScaleMin || v > c.ScaleMax {
			return fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrInvalidScores, c.Name, v, c.ScaleMin, c.ScaleMax)
		}
	}
	for _, c := range criteria {
		if _, ok := scores[c.ID]; !ok {
			return fmt.Errorf("%w: missing score for %s", ErrInvalidScores, c.Name)
		}
	}
	return nil
}
