package simulate

import (
	"fmt"

	"github.com/okian/juryline/internal/domain/assignment"
	"github.com/okian/juryline/internal/domain/types"
)

func errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrVerification}, args...)...)
}

// verifyBalance checks that judge loads differ by at most one and that every
// submission reached the target when enough judges were available.
func (r *runner) verifyBalance(res assignment.Result) error {
	loads := assignment.Loads(nil, res.Assignments)
	minLoad, maxLoad := -1, 0
	for _, j := range r.sc.judges {
		n := loads[j]
		if minLoad < 0 || n < minLoad {
			minLoad = n
		}
		maxLoad = max(maxLoad, n)
	}
	r.stats.MinJudgeLoad, r.stats.MaxJudgeLoad = minLoad, maxLoad

	if maxLoad-minLoad > 1 {
		return errorf("unbalanced judge loads: min %d, max %d", minLoad, maxLoad)
	}

	perSubmission := make(map[string]int, len(r.submissions))
	for _, a := range res.Assignments {
		perSubmission[a.SubmissionID]++
	}
	want := min(r.cfg.Target, r.cfg.Judges)
	for _, s := range r.submissions {
		if perSubmission[s.ID] != want {
			return errorf("submission %s has %d assignments, want %d", s.ID, perSubmission[s.ID], want)
		}
	}
	if r.cfg.Judges < r.cfg.Target && len(res.UnderAssigned) != len(r.submissions) {
		return errorf("expected every submission to be reported under-assigned")
	}
	return nil
}

// verifyRanking checks the remote leaderboard is ordered, uses competition
// ranking, and agrees with the locally computed entries.
func verifyRanking(remote, local []types.LeaderboardEntry) error {
	if len(remote) != len(local) {
		return errorf("leaderboard has %d entries, want %d", len(remote), len(local))
	}

	var prev *types.LeaderboardEntry
	for i := range remote {
		e := &remote[i]
		if !e.Scored {
			if e.Rank != 0 {
				return errorf("unscored submission %s has rank %d", e.SubmissionID, e.Rank)
			}
			prev = e
			continue
		}
		if prev != nil && !prev.Scored {
			return errorf("scored submission %s listed after an unscored one", e.SubmissionID)
		}
		switch {
		case prev == nil:
			if e.Rank != 1 {
				return errorf("first entry has rank %d", e.Rank)
			}
		case *e.DisplayScore > *prev.DisplayScore:
			return errorf("entry %d (%s) outranks its predecessor", i, e.SubmissionID)
		case *e.DisplayScore == *prev.DisplayScore && e.Rank != prev.Rank:
			return errorf("tied entries %s and %s have ranks %d and %d", prev.SubmissionID, e.SubmissionID, prev.Rank, e.Rank)
		case *e.DisplayScore < *prev.DisplayScore && e.Rank != i+1:
			return errorf("entry %s has rank %d, want %d", e.SubmissionID, e.Rank, i+1)
		}
		prev = e
	}

	want := make(map[string]types.LeaderboardEntry, len(local))
	for _, e := range local {
		want[e.SubmissionID] = e
	}
	for _, e := range remote {
		w, ok := want[e.SubmissionID]
		switch {
		case !ok:
			return errorf("unexpected submission %s on leaderboard", e.SubmissionID)
		case e.Rank != w.Rank:
			return errorf("submission %s has rank %d, want %d", e.SubmissionID, e.Rank, w.Rank)
		case e.ReviewCount != w.ReviewCount:
			return errorf("submission %s has %d reviews, want %d", e.SubmissionID, e.ReviewCount, w.ReviewCount)
		case (e.DisplayScore == nil) != (w.DisplayScore == nil):
			return errorf("submission %s scored state differs", e.SubmissionID)
		case e.DisplayScore != nil && *e.DisplayScore != *w.DisplayScore:
			return errorf("submission %s scored %.1f, want %.1f", e.SubmissionID, *e.DisplayScore, *w.DisplayScore)
		}
	}
	return nil
}
