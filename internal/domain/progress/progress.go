// Package progress tracks assigned versus completed reviews per judge.
package progress

import (
	"math"
	"sort"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/types"
)

// DefaultReminderPercent is the completion percentage below which a judge
// with pending work is listed for a reminder.
const DefaultReminderPercent = 50

// Option configures Compute and Summarize.
type Option func(*tracker)

type tracker struct {
	judges          []string
	reminderPercent int
}

// WithJudges includes judges that may have no assignments yet, so they are
// reported as not started instead of omitted.
func WithJudges(judgeIDs ...string) Option {
	return func(t *tracker) {
		t.judges = append(t.judges, judgeIDs...)
	}
}

// WithReminderPercent sets the reminder threshold used by Summarize.
func WithReminderPercent(percent int) Option {
	return func(t *tracker) {
		if percent >= 0 && percent <= 100 {
			t.reminderPercent = percent
		}
	}
}

func newTracker(opts []Option) *tracker {
	t := &tracker{reminderPercent: DefaultReminderPercent}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Compute returns one progress record per judge, ordered by judge ID. A
// review counts as completed only when it matches one of the judge's
// assignments.
func Compute(assignments []model.Assignment, reviews []model.Review, opts ...Option) []types.JudgeProgress {
	t := newTracker(opts)

	reviewed := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		reviewed[r.Key()] = struct{}{}
	}

	byJudge := make(map[string]*types.JudgeProgress)
	get := func(judgeID string) *types.JudgeProgress {
		p, ok := byJudge[judgeID]
		if !ok {
			p = &types.JudgeProgress{JudgeID: judgeID}
			byJudge[judgeID] = p
		}
		return p
	}
	for _, id := range t.judges {
		get(id)
	}

	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		key := a.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		p := get(a.JudgeID)
		p.Assigned++
		if _, ok := reviewed[key]; ok {
			p.Completed++
		}
	}

	out := make([]types.JudgeProgress, 0, len(byJudge))
	for _, p := range byJudge {
		p.Percent = percent(p.Completed, p.Assigned)
		p.Status = status(p.Completed, p.Assigned)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out
}

func percent(completed, assigned int) int {
	if assigned == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(assigned) * 100))
}

func status(completed, assigned int) types.ProgressStatus {
	switch {
	case completed == 0:
		return types.ProgressNotStarted
	case completed == assigned:
		return types.ProgressCompleted
	default:
		return types.ProgressInProgress
	}
}

// Summary is the event-level view of judge progress.
type Summary struct {
	Judges         []types.JudgeProgress `json:"judges"`
	Assigned       int                   `json:"assigned"`
	Completed      int                   `json:"completed"`
	OverallPercent int                   `json:"overall_percent"`
	// Reminders lists judges with assigned work below the reminder threshold.
	Reminders []string `json:"reminders"`
}

// Summarize computes progress and derives totals and reminders.
func Summarize(assignments []model.Assignment, reviews []model.Review, opts ...Option) Summary {
	t := newTracker(opts)
	judges := Compute(assignments, reviews, opts...)

	s := Summary{Judges: judges, Reminders: []string{}}
	for _, p := range judges {
		s.Assigned += p.Assigned
		s.Completed += p.Completed
		if p.Assigned > 0 && p.Percent < t.reminderPercent {
			s.Reminders = append(s.Reminders, p.JudgeID)
		}
	}
	s.OverallPercent = percent(s.Completed, s.Assigned)
	return s
}
