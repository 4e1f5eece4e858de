package model

import (
	"fmt"
	"sort"
	"strings"
)

// Criterion is one scoring dimension of an event with its own scale and
// weight. Zero-weight criteria are kept for display only.
type Criterion struct {
	ID        string  `json:"id" yaml:"id"`
	EventID   string  `json:"event_id,omitempty" yaml:"event_id"`
	Name      string  `json:"name" yaml:"name"`
	ScaleMin  float64 `json:"scale_min" yaml:"scale_min"`
	ScaleMax  float64 `json:"scale_max" yaml:"scale_max"`
	Weight    float64 `json:"weight" yaml:"weight"`
	SortOrder int     `json:"sort_order" yaml:"sort_order"`
}

// Validate checks the criterion's structural invariants.
func (c Criterion) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCriterion)
	}
	if c.ScaleMax <= c.ScaleMin {
		return fmt.Errorf("%w: %s: scale_max %.4g must exceed scale_min %.4g", ErrInvalidCriterion, c.ID, c.ScaleMax, c.ScaleMin)
	}
	if c.Weight < 0 {
		return fmt.Errorf("%w: %s: negative weight", ErrInvalidCriterion, c.ID)
	}
	return nil
}

// SortCriteria orders criteria for display: by SortOrder, then ID.
func SortCriteria(cs []Criterion) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].SortOrder != cs[j].SortOrder {
			return cs[i].SortOrder < cs[j].SortOrder
		}
		return cs[i].ID < cs[j].ID
	})
}
