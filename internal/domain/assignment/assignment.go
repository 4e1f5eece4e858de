// Package assignment plans balanced judge assignments for an event.
//
// Submissions are visited round-robin, one slot per submission per pass, and
// each slot goes to the least-loaded eligible judge not already paired with
// that submission (ties broken by judge ID). A final pass moves newly planned
// slots from the most to the least loaded judges until loads differ by at
// most one, following chains of moves through intermediate judges when no
// direct move exists. Existing assignments are kept and count toward load,
// so re-running the planner only fills the deficit.
package assignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/juryline/internal/domain/dedupe"
	"github.com/okian/juryline/internal/domain/model"
)

// Option configures Plan.
type Option func(*planner)

type planner struct {
	newID func() string
	now   func() time.Time
}

// WithIDGenerator overrides the assignment ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(p *planner) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(p *planner) {
		if now != nil {
			p.now = now
		}
	}
}

// UnderAssigned reports a submission left below the target.
type UnderAssigned struct {
	SubmissionID string `json:"submission_id"`
	Have         int    `json:"have"`
	Target       int    `json:"target"`
}

// Result holds the new assignments to persist and any warnings.
type Result struct {
	Assignments   []model.Assignment `json:"assignments"`
	UnderAssigned []UnderAssigned    `json:"under_assigned"`
	Warnings      []string           `json:"warnings"`
}

// Feasible reports whether every submission reached the target.
func (r Result) Feasible() bool { return len(r.UnderAssigned) == 0 }

// Loads returns the per-judge assignment count after applying the plan on
// top of existing.
func Loads(existing, planned []model.Assignment) map[string]int {
	out := make(map[string]int)
	for _, a := range existing {
		out[a.JudgeID]++
	}
	for _, a := range planned {
		out[a.JudgeID]++
	}
	return out
}

// Plan computes the assignments needed so each submission has target
// judges. Only judges who accepted their invite are eligible. With fewer
// eligible judges than target, every eligible judge is assigned and the
// shortfall is reported, not treated as an error.
func Plan(submissions []model.Submission, judges []model.EventJudge, target int, existing []model.Assignment, opts ...Option) Result {
	p := &planner{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	res := Result{Assignments: []model.Assignment{}, UnderAssigned: []UnderAssigned{}, Warnings: []string{}}
	if target <= 0 || len(submissions) == 0 {
		return res
	}

	eligible := eligibleJudges(judges)
	if len(eligible) < target {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("only %d eligible judges for a target of %d reviews per submission", len(eligible), target))
	}

	ctx := context.Background()
	pairs := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	load := make(map[string]int, len(eligible))
	have := make(map[string]int, len(submissions))
	for _, a := range existing {
		if pairs.SeenAndRecord(ctx, a.Key()) {
			continue
		}
		load[a.JudgeID]++
		have[a.SubmissionID]++
	}

	order := append([]model.Submission(nil), submissions...)
	sort.SliceStable(order, func(i, j int) bool {
		if !order[i].CreatedAt.Equal(order[j].CreatedAt) {
			return order[i].CreatedAt.Before(order[j].CreatedAt)
		}
		return order[i].ID < order[j].ID
	})

	now := p.now()
	for progressed := true; progressed; {
		progressed = false
		for _, s := range order {
			if have[s.ID] >= target {
				continue
			}
			judge, ok := leastLoaded(ctx, eligible, load, pairs, s.ID)
			if !ok {
				continue
			}
			pairs.SeenAndRecord(ctx, model.PairKey(judge, s.ID))
			load[judge]++
			have[s.ID]++
			res.Assignments = append(res.Assignments, model.Assignment{
				ID:           p.newID(),
				EventID:      s.EventID,
				SubmissionID: s.ID,
				JudgeID:      judge,
				CreatedAt:    now,
			})
			progressed = true
		}
	}

	rebalance(ctx, eligible, load, pairs, res.Assignments)

	for _, s := range order {
		if have[s.ID] < target {
			res.UnderAssigned = append(res.UnderAssigned, UnderAssigned{SubmissionID: s.ID, Have: have[s.ID], Target: target})
		}
	}
	if n := len(res.UnderAssigned); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d submissions remain under-assigned", n))
	}
	return res
}

func eligibleJudges(judges []model.EventJudge) []string {
	seen := make(map[string]struct{}, len(judges))
	out := make([]string, 0, len(judges))
	for _, j := range judges {
		if !j.Accepted() {
			continue
		}
		if _, dup := seen[j.JudgeID]; dup {
			continue
		}
		seen[j.JudgeID] = struct{}{}
		out = append(out, j.JudgeID)
	}
	sort.Strings(out)
	return out
}

// leastLoaded picks the eligible judge with the lowest load who is not yet
// paired with submissionID. eligible is sorted, so the first minimum wins
// ties by judge ID.
func leastLoaded(ctx context.Context, eligible []string, load map[string]int, pairs dedupe.Deduper, submissionID string) (string, bool) {
	best, found := "", false
	for _, j := range eligible {
		if pairs.Seen(ctx, model.PairKey(j, submissionID)) {
			continue
		}
		if !found || load[j] < load[best] {
			best, found = j, true
		}
	}
	return best, found
}

// rebalance moves planned slots until no judge carries two or more slots
// above another judge it can shed load to. A move may be a chain: judge A
// hands a slot to B, B hands a different slot to C, and so on, so only the
// two ends change load. Existing assignments are never moved.
func rebalance(ctx context.Context, eligible []string, load map[string]int, pairs dedupe.Deduper, planned []model.Assignment) {
	byLoad := append([]string(nil), eligible...)
	for {
		sort.SliceStable(byLoad, func(i, j int) bool {
			if load[byLoad[i]] != load[byLoad[j]] {
				return load[byLoad[i]] > load[byLoad[j]]
			}
			return byLoad[i] < byLoad[j]
		})
		if !shiftOne(ctx, byLoad, load, pairs, planned) {
			return
		}
	}
}

// hop is one step of a move chain: planned[slot] leaves from.
type hop struct {
	from string
	slot int
}

// shiftOne applies the first chain found from the most loaded judges down.
// byLoad is sorted by descending load.
func shiftOne(ctx context.Context, byLoad []string, load map[string]int, pairs dedupe.Deduper, planned []model.Assignment) bool {
	if len(byLoad) == 0 {
		return false
	}
	floor := load[byLoad[len(byLoad)-1]]
	for _, src := range byLoad {
		if load[src]-floor <= 1 {
			return false
		}
		chain, dst := findChain(ctx, src, byLoad, load, pairs, planned)
		if chain == nil {
			continue
		}
		for to, i := dst, len(chain)-1; i >= 0; i-- {
			a := &planned[chain[i].slot]
			pairs.Unrecord(ctx, a.Key())
			a.JudgeID = to
			pairs.SeenAndRecord(ctx, a.Key())
			to = chain[i].from
		}
		load[src]--
		load[dst]++
		return true
	}
	return false
}

// findChain searches breadth-first from src for a judge carrying at least
// two fewer slots. An edge X->Y exists when X holds a planned slot on a
// submission Y is not paired with. It returns the hops in order from src
// and the receiving judge, or nil when no such judge is reachable.
func findChain(ctx context.Context, src string, judges []string, load map[string]int, pairs dedupe.Deduper, planned []model.Assignment) ([]hop, string) {
	prev := map[string]hop{src: {}}
	queue := []string{src}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		for i := range planned {
			if planned[i].JudgeID != x {
				continue
			}
			for _, y := range judges {
				if _, seen := prev[y]; seen {
					continue
				}
				if pairs.Seen(ctx, model.PairKey(y, planned[i].SubmissionID)) {
					continue
				}
				prev[y] = hop{from: x, slot: i}
				if load[y] <= load[src]-2 {
					var chain []hop
					for at := y; at != src; at = prev[at].from {
						chain = append(chain, prev[at])
					}
					for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
						chain[l], chain[r] = chain[r], chain[l]
					}
					return chain, y
				}
				queue = append(queue, y)
			}
		}
	}
	return nil, ""
}
