package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/juryline/internal/domain/assignment"
	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/progress"
	"github.com/okian/juryline/pkg/logger"
)

// run state shared by the simulation steps.
type runner struct {
	cfg    Config
	client *client
	log    logger.Logger
	sc     *scenario
	stats  *Stats

	event       model.Event
	criteria    []model.Criterion
	submissions []model.Submission
	owner       map[string]string // submission ID -> participant ID
	planned     []model.Assignment
	reviews     []model.Review
}

// Run creates a synthetic event through the HTTP API, plans assignments,
// submits every review and verifies the planner balance and the leaderboard
// ordering against a locally computed leaderboard.
func Run(ctx context.Context, cfg Config, log logger.Logger) (*Stats, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		log:    log,
		sc:     newScenario(cfg),
		stats:  &Stats{Submissions: cfg.Submissions, Judges: cfg.Judges},
		owner:  make(map[string]string, cfg.Submissions),
	}
	start := time.Now()

	log.Info(ctx, "starting juryline simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("judges", cfg.Judges),
		logger.Int("target", cfg.Target),
		logger.Int("workers", cfg.Workers),
	)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"health check", r.checkHealth},
		{"event setup", r.setupEvent},
		{"assignment planning", r.plan},
		{"review submission", r.submitReviews},
		{"review ingestion", r.waitForProgress},
		{"leaderboard verification", r.verifyLeaderboard},
		{"event close", r.closeEvent},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return r.stats, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	r.stats.Duration = time.Since(start)
	log.Info(ctx, "simulation completed",
		logger.String("event_id", r.stats.EventID),
		logger.Int("assignments", r.stats.Assignments),
		logger.Int("reviewsAccepted", r.stats.ReviewsAccepted),
		logger.Int("reviewsDuplicate", r.stats.ReviewsDuplicate),
		logger.Int("backpressured", r.stats.Backpressured),
		logger.Duration("duration", r.stats.Duration),
	)
	return r.stats, nil
}

func (r *runner) checkHealth(ctx context.Context) error {
	_, err := r.client.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

func (r *runner) setupEvent(ctx context.Context) error {
	create := map[string]any{"name": r.sc.name, "judges_per_submission": r.cfg.Target}
	if _, err := r.client.do(ctx, http.MethodPost, "/events", create, &r.event, http.StatusCreated); err != nil {
		return err
	}
	r.stats.EventID = r.event.ID
	base := "/events/" + r.event.ID

	for _, cs := range defaultCriteria {
		var c model.Criterion
		if _, err := r.client.do(ctx, http.MethodPost, base+"/criteria", cs, &c, http.StatusCreated); err != nil {
			return err
		}
		r.criteria = append(r.criteria, c)
	}
	model.SortCriteria(r.criteria)

	if err := r.transition(ctx, model.StatusOpen); err != nil {
		return err
	}

	for _, participant := range r.sc.participants {
		var s model.Submission
		body := map[string]any{"participant_id": participant, "form_data": map[string]any{"project": "project-" + participant[:8]}}
		if _, err := r.client.do(ctx, http.MethodPost, base+"/submissions", body, &s, http.StatusCreated); err != nil {
			return err
		}
		r.submissions = append(r.submissions, s)
		r.owner[s.ID] = participant
	}

	for _, judge := range r.sc.judges {
		if _, err := r.client.do(ctx, http.MethodPost, base+"/judges", map[string]string{"judge_id": judge}, nil, http.StatusCreated); err != nil {
			return err
		}
		if _, err := r.client.do(ctx, http.MethodPost, base+"/judges/"+judge+"/accept", nil, nil, http.StatusOK); err != nil {
			return err
		}
	}

	r.log.Info(ctx, "event ready",
		logger.String("event_id", r.event.ID),
		logger.Int("criteria", len(r.criteria)),
		logger.Int("submissions", len(r.submissions)),
	)
	return r.transition(ctx, model.StatusJudging)
}

func (r *runner) transition(ctx context.Context, to model.EventStatus) error {
	_, err := r.client.do(ctx, http.MethodPatch, "/events/"+r.event.ID+"/status",
		map[string]string{"status": string(to)}, nil, http.StatusOK)
	return err
}

func (r *runner) plan(ctx context.Context) error {
	var res assignment.Result
	if _, err := r.client.do(ctx, http.MethodPost, "/events/"+r.event.ID+"/assignments/plan",
		map[string]int{"target": r.cfg.Target}, &res, http.StatusOK); err != nil {
		return err
	}
	r.planned = res.Assignments
	r.stats.Assignments = len(res.Assignments)

	for _, w := range res.Warnings {
		r.log.Warn(ctx, w, logger.String("event_id", r.event.ID))
	}
	return r.verifyBalance(res)
}

func (r *runner) waitForProgress(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Wait)
	defer cancel()

	want := r.stats.ReviewsAccepted
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var sum progress.Summary
		if _, err := r.client.do(ctx, http.MethodGet, "/events/"+r.event.ID+"/judge-progress", nil, &sum, http.StatusOK); err != nil {
			return err
		}
		if sum.Completed >= want {
			r.log.Info(ctx, "all reviews ingested", logger.Int("completed", sum.Completed), logger.Int("percent", sum.OverallPercent))
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d of %d reviews ingested: %w", ErrVerification, sum.Completed, want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *runner) verifyLeaderboard(ctx context.Context) error {
	var remote leaderboard.Result
	if _, err := r.client.do(ctx, http.MethodGet, "/events/"+r.event.ID+"/leaderboard", nil, &remote, http.StatusOK); err != nil {
		return err
	}
	local, err := leaderboard.Build(&r.event, r.criteria, r.submissions, r.reviews)
	if err != nil {
		return fmt.Errorf("local leaderboard: %w", err)
	}
	if err := verifyRanking(remote.Entries, local.Entries); err != nil {
		return err
	}
	r.stats.LeaderboardRanked = len(remote.Scored())

	top := remote.Top(3)
	for _, e := range top {
		if e.DisplayScore == nil {
			continue
		}
		r.log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("submission_id", e.SubmissionID),
			logger.String("participant_id", r.owner[e.SubmissionID]),
			logger.Float64("score", *e.DisplayScore),
		)
	}
	return nil
}

func (r *runner) closeEvent(ctx context.Context) error {
	if !r.cfg.Close {
		return nil
	}
	return r.transition(ctx, model.StatusClosed)
}
