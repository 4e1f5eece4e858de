package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/juryline/internal/domain/bias"
	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/progress"
	"github.com/okian/juryline/internal/domain/types"
	"github.com/okian/juryline/pkg/metrics"
)

// Dashboard combines the organizer views of one event.
type Dashboard struct {
	Stats       types.EventStats   `json:"stats"`
	Progress    progress.Summary   `json:"progress"`
	Leaderboard leaderboard.Result `json:"leaderboard"`
}

func (s *Service) snapshot(ctx context.Context, eventID string) (model.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx, eventID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return snap, nil
}

func (s *Service) buildLeaderboard(ctx context.Context, snap *model.Snapshot) (leaderboard.Result, error) {
	start := time.Now()
	res, err := leaderboard.Build(&snap.Event, snap.Criteria, snap.Submissions, snap.Reviews,
		leaderboard.WithTolerance(s.tolerance))
	if err != nil {
		return leaderboard.Result{}, err
	}
	metrics.RecordReportComputation("leaderboard", msSince(start))
	s.reportIssues(ctx, "leaderboard", snap.Event.ID, res.Issues)
	return res, nil
}

// Leaderboard returns the event's ranked submissions. Results are cached
// until the next write to the event. Callers must not modify the result.
func (s *Service) Leaderboard(ctx context.Context, eventID string) (leaderboard.Result, error) {
	ctx, span := s.startSpan(ctx, "service.Leaderboard", eventID)
	res, err := s.cache.get(eventID, func() (leaderboard.Result, error) {
		snap, err := s.snapshot(ctx, eventID)
		if err != nil {
			return leaderboard.Result{}, err
		}
		return s.buildLeaderboard(ctx, &snap)
	})
	endSpan(span, err)
	return res, err
}

// JudgeProgress returns assigned vs completed reviews for every accepted
// judge and anyone holding assignments.
func (s *Service) JudgeProgress(ctx context.Context, eventID string) (progress.Summary, error) {
	ctx, span := s.startSpan(ctx, "service.JudgeProgress", eventID)
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		endSpan(span, err)
		return progress.Summary{}, err
	}
	start := time.Now()
	sum := progress.Summarize(snap.Assignments, snap.Reviews, progress.WithJudges(snap.AcceptedJudges()...))
	metrics.RecordReportComputation("progress", msSince(start))
	endSpan(span, nil)
	return sum, nil
}

// BiasReport compares each judge's average score with the event mean. A nil
// threshold uses the configured default.
func (s *Service) BiasReport(ctx context.Context, eventID string, threshold *float64) (bias.Report, error) {
	ctx, span := s.startSpan(ctx, "service.BiasReport", eventID)
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		endSpan(span, err)
		return bias.Report{}, err
	}

	mult := s.biasThreshold
	if threshold != nil {
		mult = *threshold
	}
	start := time.Now()
	rep := bias.Analyze(snap.Criteria, snap.Reviews,
		bias.WithThreshold(mult),
		bias.WithJudges(snap.AcceptedJudges()...),
		bias.WithTolerance(s.tolerance),
	)
	metrics.RecordReportComputation("bias", msSince(start))
	s.reportIssues(ctx, "bias", eventID, rep.Issues)
	endSpan(span, nil)
	return rep, nil
}

// EventStats summarizes judging activity for the event.
func (s *Service) EventStats(ctx context.Context, eventID string) (types.EventStats, error) {
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return types.EventStats{}, err
	}
	return computeStats(&snap), nil
}

// Pending lists submissions still waiting for assigned reviews.
func (s *Service) Pending(ctx context.Context, eventID string) ([]types.PendingSubmission, error) {
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return computePending(&snap), nil
}

// Dashboard computes stats, progress and the leaderboard concurrently from
// one snapshot.
func (s *Service) Dashboard(ctx context.Context, eventID string) (Dashboard, error) {
	ctx, span := s.startSpan(ctx, "service.Dashboard", eventID)
	snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		endSpan(span, err)
		return Dashboard{}, err
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Stats = computeStats(&snap)
		return nil
	})
	g.Go(func() error {
		d.Progress = progress.Summarize(snap.Assignments, snap.Reviews, progress.WithJudges(snap.AcceptedJudges()...))
		return nil
	})
	g.Go(func() error {
		res, err := s.buildLeaderboard(gctx, &snap)
		d.Leaderboard = res
		return err
	})
	err = g.Wait()
	endSpan(span, err)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard %s: %w", eventID, err)
	}
	return d, nil
}

// ExportCSV writes the event's leaderboard as CSV.
func (s *Service) ExportCSV(ctx context.Context, eventID string, w io.Writer) error {
	res, err := s.Leaderboard(ctx, eventID)
	if err != nil {
		return err
	}
	return leaderboard.WriteCSV(w, res)
}

func computeStats(snap *model.Snapshot) types.EventStats {
	st := types.EventStats{
		EventID:          snap.Event.ID,
		TotalSubmissions: len(snap.Submissions),
		TotalJudges:      len(snap.Judges),
		AcceptedJudges:   len(snap.AcceptedJudges()),
		TotalAssignments: len(snap.Assignments),
		TotalReviews:     len(snap.Reviews),
	}

	reviewed := reviewedPairs(snap.Reviews)
	for _, a := range snap.Assignments {
		if reviewed[a.Key()] {
			st.CompletedReviews++
		}
	}
	st.PendingReviews = st.TotalAssignments - st.CompletedReviews
	if st.TotalAssignments > 0 {
		st.CompletionPercent = math.Round(float64(st.CompletedReviews)/float64(st.TotalAssignments)*1000) / 10
	}

	var sum float64
	var n int
	for _, r := range snap.Reviews {
		for _, v := range r.Scores {
			sum += v
			n++
		}
	}
	if n > 0 {
		avg := math.Round(sum/float64(n)*100) / 100
		st.AverageScore = &avg
	}
	return st
}

func computePending(snap *model.Snapshot) []types.PendingSubmission {
	reviewed := reviewedPairs(snap.Reviews)
	bySub := make(map[string]*types.PendingSubmission)
	for _, a := range snap.Assignments {
		p, ok := bySub[a.SubmissionID]
		if !ok {
			p = &types.PendingSubmission{SubmissionID: a.SubmissionID, PendingJudges: []string{}}
			bySub[a.SubmissionID] = p
		}
		p.Assigned++
		if reviewed[a.Key()] {
			p.Reviewed++
		} else {
			p.PendingJudges = append(p.PendingJudges, a.JudgeID)
		}
	}

	out := make([]types.PendingSubmission, 0, len(bySub))
	for _, p := range bySub {
		p.Remaining = p.Assigned - p.Reviewed
		if p.Remaining == 0 {
			continue
		}
		sort.Strings(p.PendingJudges)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Remaining != out[j].Remaining {
			return out[i].Remaining > out[j].Remaining
		}
		return out[i].SubmissionID < out[j].SubmissionID
	})
	return out
}

func reviewedPairs(reviews []model.Review) map[string]bool {
	out := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		out[r.Key()] = true
	}
	return out
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
