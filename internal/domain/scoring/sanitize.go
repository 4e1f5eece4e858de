package scoring

import (
	"sort"

	"github.com/okian/juryline/internal/domain/model"
)

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithTolerance sets the out-of-scale tolerance as a fraction of the scale
// span. Negative values are ignored.
func WithTolerance(tolerance float64) Option {
	return func(s *Sanitizer) {
		if tolerance >= 0 {
			s.tolerance = tolerance
		}
	}
}

// Sanitizer drops review data points that contradict the criteria list and
// reports each one as an IntegrityIssue. Aggregation continues over what
// remains.
type Sanitizer struct {
	tolerance float64
}

// NewSanitizer creates a Sanitizer with DefaultTolerance.
func NewSanitizer(opts ...Option) *Sanitizer {
	s := &Sanitizer{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tolerance returns the configured tolerance.
func (s *Sanitizer) Tolerance() float64 { return s.tolerance }

// Sanitize returns copies of reviews with unknown criterion keys and values
// too far outside their scale removed. Input reviews are not modified.
func (s *Sanitizer) Sanitize(criteria []model.Criterion, reviews []model.Review) ([]model.Review, []IntegrityIssue) {
	byID := make(map[string]model.Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	var issues []IntegrityIssue
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		keys := make([]string, 0, len(r.Scores))
		for k := range r.Scores {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		clean := make(map[string]float64, len(r.Scores))
		for _, k := range keys {
			v := r.Scores[k]
			c, ok := byID[k]
			if !ok {
				issues = append(issues, s.issue(IssueUnknownCriterion, r, k, v))
				continue
			}
			if !s.inScale(c, v) {
				issues = append(issues, s.issue(IssueOutOfRange, r, k, v))
				continue
			}
			clean[k] = v
		}

		r.Scores = clean
		out = append(out, r)
	}
	return out, issues
}

func (s *Sanitizer) inScale(c model.Criterion, v float64) bool {
	slack := s.tolerance * (c.ScaleMax - c.ScaleMin)
	return v >= c.ScaleMin-slack && v <= c.ScaleMax+slack
}

func (s *Sanitizer) issue(kind IssueKind, r model.Review, criterionID string, v float64) IntegrityIssue {
	return IntegrityIssue{
		Kind:         kind,
		ReviewID:     r.ID,
		SubmissionID: r.SubmissionID,
		JudgeID:      r.JudgeID,
		CriterionID:  criterionID,
		Value:        v,
	}
}
