// Package scoring normalizes raw criterion scores and combines them into a
// submission's weighted score on a 0-10 scale.
package scoring

import (
	"math"

	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/types"
)

// Scoring constants.
const (
	// DisplayScale is the upper bound of weighted scores.
	DisplayScale = 10.0
	// DefaultTolerance is how far, as a fraction of the scale span, a value
	// may sit outside its scale before it is treated as an integrity issue.
	DefaultTolerance = 1e-6

	displayPrecision = 10 // one decimal place
)

// Normalize maps score on [min, max] into [0, 1]. A degenerate scale
// (max == min) carries no signal and maps to 0.
func Normalize(score, minV, maxV float64) float64 {
	if maxV == minV {
		return 0
	}
	v := (score - minV) / (maxV - minV)
	return math.Max(0, math.Min(1, v))
}

// AggregateCriterion summarizes the raw scores that reviews gave to c.
// Reviews without a score for c are ignored; when none has one, Count is 0
// and Average, Min and Max stay nil.
func AggregateCriterion(c model.Criterion, reviews []model.Review) types.CriterionAggregate {
	agg := types.CriterionAggregate{
		CriterionID: c.ID,
		Name:        c.Name,
		Weight:      c.Weight,
	}

	var sum, lo, hi float64
	for _, r := range reviews {
		v, ok := r.Scores[c.ID]
		if !ok {
			continue
		}
		if agg.Count == 0 || v < lo {
			lo = v
		}
		if agg.Count == 0 || v > hi {
			hi = v
		}
		sum += v
		agg.Count++
	}
	if agg.Count == 0 {
		return agg
	}

	avg := sum / float64(agg.Count)
	agg.Average = &avg
	agg.Min = &lo
	agg.Max = &hi
	return agg
}

// AggregateAll aggregates every criterion, in the order given.
func AggregateAll(criteria []model.Criterion, reviews []model.Review) []types.CriterionAggregate {
	out := make([]types.CriterionAggregate, 0, len(criteria))
	for _, c := range criteria {
		out = append(out, AggregateCriterion(c, reviews))
	}
	return out
}

// ScoreSubmission combines per-criterion aggregates into a weighted score:
//
//	10 * sum(normalize(avg_i) * w_i) / sum(w_i)
//
// over criteria with at least one score, normalizing against each
// criterion's declared scale. It returns nil when the denominator is zero.
func ScoreSubmission(criteria []model.Criterion, aggregates []types.CriterionAggregate) *float64 {
	byID := make(map[string]types.CriterionAggregate, len(aggregates))
	for _, a := range aggregates {
		byID[a.CriterionID] = a
	}

	var num, den float64
	for _, c := range criteria {
		a, ok := byID[c.ID]
		if !ok || a.Count == 0 || a.Average == nil {
			continue
		}
		num += Normalize(*a.Average, c.ScaleMin, c.ScaleMax) * c.Weight
		den += c.Weight
	}
	if den == 0 {
		return nil
	}

	score := DisplayScale * num / den
	return &score
}

// ScoreReview is the weighted score of a single review, computed the same
// way as ScoreSubmission over only that review's scores.
func ScoreReview(criteria []model.Criterion, r model.Review) *float64 {
	one := []model.Review{r}
	return ScoreSubmission(criteria, AggregateAll(criteria, one))
}

// RoundDisplay rounds v to the one decimal place used for display and for
// rank ties.
func RoundDisplay(v float64) float64 {
	return math.Round(v*displayPrecision) / displayPrecision
}
