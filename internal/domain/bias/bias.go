// Package bias compares each judge's average given score with the event
// mean and flags statistical outliers.
package bias

import (
	"math"
	"sort"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/scoring"
	"github.com/okian/juryline/internal/domain/types"
)

// Analysis defaults.
const (
	DefaultThreshold = 1.0
	// MinJudges is the panel size below which nobody is flagged.
	MinJudges = 3
)

// Option configures Analyze.
type Option func(*analyzer)

type analyzer struct {
	threshold float64
	judges    []string
	sanitizer *scoring.Sanitizer
}

// WithThreshold sets the outlier multiplier applied to the standard
// deviation. Negative values are ignored.
func WithThreshold(multiplier float64) Option {
	return func(a *analyzer) {
		if multiplier >= 0 && !math.IsNaN(multiplier) {
			a.threshold = multiplier
		}
	}
}

// WithJudges names the event's judges so those without any scoreable
// review are reported in Report.Absent.
func WithJudges(judgeIDs ...string) Option {
	return func(a *analyzer) {
		a.judges = append(a.judges, judgeIDs...)
	}
}

// WithTolerance sets the out-of-scale tolerance used to reject review data.
func WithTolerance(tolerance float64) Option {
	return func(a *analyzer) {
		a.sanitizer = scoring.NewSanitizer(scoring.WithTolerance(tolerance))
	}
}

// Report is the per-judge bias view of an event.
type Report struct {
	// EventAverage is the mean of per-judge averages; nil without data.
	EventAverage *float64                 `json:"event_average"`
	StdDev       float64                  `json:"std_dev"`
	Threshold    float64                  `json:"threshold"`
	Judges       []types.JudgeBias        `json:"judges"`
	Absent       []string                 `json:"absent"`
	Issues       []scoring.IntegrityIssue `json:"issues,omitempty"`
}

// Outliers returns the flagged judges.
func (r Report) Outliers() []types.JudgeBias {
	var out []types.JudgeBias
	for _, j := range r.Judges {
		if j.IsOutlier {
			out = append(out, j)
		}
	}
	return out
}

// Analyze computes each judge's mean per-review weighted score and its
// deviation from the mean of all judges. A judge is an outlier when the
// absolute deviation exceeds threshold * population standard deviation of
// the per-judge averages, and only when at least MinJudges judges have data.
func Analyze(criteria []model.Criterion, reviews []model.Review, opts ...Option) Report {
	a := &analyzer{threshold: DefaultThreshold, sanitizer: scoring.NewSanitizer()}
	for _, opt := range opts {
		opt(a)
	}

	clean, issues := a.sanitizer.Sanitize(criteria, reviews)

	type acc struct {
		sum float64
		n   int
	}
	perJudge := make(map[string]*acc)
	for _, r := range clean {
		s := scoring.ScoreReview(criteria, r)
		if s == nil {
			continue
		}
		j, ok := perJudge[r.JudgeID]
		if !ok {
			j = &acc{}
			perJudge[r.JudgeID] = j
		}
		j.sum += *s
		j.n++
	}

	report := Report{
		Threshold: a.threshold,
		Judges:    make([]types.JudgeBias, 0, len(perJudge)),
		Absent:    absent(a.judges, reviews, perJudge),
		Issues:    issues,
	}
	if len(perJudge) == 0 {
		return report
	}

	avgs := make([]float64, 0, len(perJudge))
	for id, j := range perJudge {
		avg := j.sum / float64(j.n)
		avgs = append(avgs, avg)
		report.Judges = append(report.Judges, types.JudgeBias{JudgeID: id, ReviewCount: j.n, Average: avg})
	}

	mean := meanOf(avgs)
	sd := populationStdDev(avgs, mean)
	report.EventAverage = &mean
	report.StdDev = sd

	flag := len(report.Judges) >= MinJudges
	for i := range report.Judges {
		j := &report.Judges[i]
		j.Deviation = j.Average - mean
		j.IsOutlier = flag && math.Abs(j.Deviation) > a.threshold*sd
	}

	sort.Slice(report.Judges, func(i, j int) bool { return report.Judges[i].JudgeID < report.Judges[j].JudgeID })
	return report
}

// absent lists known judges, including those seen only in reviews, that
// contributed no scoreable review.
func absent[T any](known []string, reviews []model.Review, scored map[string]T) []string {
	set := make(map[string]struct{}, len(known))
	for _, id := range known {
		set[id] = struct{}{}
	}
	for _, r := range reviews {
		set[r.JudgeID] = struct{}{}
	}

	out := []string{}
	for id := range set {
		if _, ok := scored[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationStdDev(xs []float64, mean float64) float64 {
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
