package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/juryline/internal/adapters/repository"
	service "github.com/okian/juryline/internal/app"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Assignment
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, as []model.Assignment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, as...)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newService(opts ...service.Option) (*service.Service, *recordingNotifier) {
	return newServiceOn(repository.NewMemoryStore(context.Background()), opts...)
}

func newServiceOn(store repository.Store, opts ...service.Option) (*service.Service, *recordingNotifier) {
	var seq atomic.Int64
	var tick atomic.Int64
	n := &recordingNotifier{}
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithLogger(logger.Nop()),
		service.WithNotifier(n),
		service.WithLeaderboardCacheTTL(time.Minute),
		service.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
		service.WithClock(func() time.Time { return t0.Add(time.Duration(tick.Add(1)) * time.Second) }),
	}
	svc := service.New(store, append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, n
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// seeded is an open event with two criteria, two submissions, three
// accepted judges and one pending judge.
type seeded struct {
	event    model.Event
	criteria []model.Criterion
	subs     []model.Submission
}

func seed(ctx context.Context, svc *service.Service) seeded {
	var s seeded
	var err error
	s.event, err = svc.CreateEvent(ctx, service.CreateEventInput{Name: "Hack Week", OrganizerID: "org", JudgesPerSubmission: 2})
	So(err, ShouldBeNil)

	impact, err := svc.AddCriterion(ctx, s.event.ID, service.CriterionInput{Name: "Impact", ScaleMin: 1, ScaleMax: 10, Weight: 2, SortOrder: 1})
	So(err, ShouldBeNil)
	design, err := svc.AddCriterion(ctx, s.event.ID, service.CriterionInput{Name: "Design", ScaleMin: 0, ScaleMax: 5, Weight: 1, SortOrder: 2})
	So(err, ShouldBeNil)
	s.criteria = []model.Criterion{impact, design}

	for _, j := range []string{"j1", "j2", "j3", "j4"} {
		_, err = svc.InviteJudge(ctx, s.event.ID, j)
		So(err, ShouldBeNil)
	}
	for _, j := range []string{"j1", "j2", "j3"} {
		_, err = svc.AcceptInvite(ctx, s.event.ID, j)
		So(err, ShouldBeNil)
	}

	s.event, err = svc.TransitionEvent(ctx, s.event.ID, model.StatusOpen)
	So(err, ShouldBeNil)

	for _, p := range []string{"p1", "p2"} {
		sub, err := svc.AddSubmission(ctx, s.event.ID, p, map[string]any{"title": "project " + p})
		So(err, ShouldBeNil)
		s.subs = append(s.subs, sub)
	}
	return s
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When creating an event with bad input", func() {
			_, errName := svc.CreateEvent(ctx, service.CreateEventInput{JudgesPerSubmission: 2})
			_, errJudges := svc.CreateEvent(ctx, service.CreateEventInput{Name: "x"})

			Convey("Then validation errors are returned", func() {
				So(errors.Is(errName, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errJudges, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When a draft event is opened without criteria", func() {
			ev, err := svc.CreateEvent(ctx, service.CreateEventInput{Name: "Empty", JudgesPerSubmission: 1})
			So(err, ShouldBeNil)
			So(ev.Status, ShouldEqual, model.StatusDraft)
			_, err = svc.TransitionEvent(ctx, ev.ID, model.StatusOpen)

			Convey("Then it is refused", func() {
				So(errors.Is(err, model.ErrNoCriteria), ShouldBeTrue)
			})
		})

		Convey("When skipping a lifecycle step", func() {
			ev, _ := svc.CreateEvent(ctx, service.CreateEventInput{Name: "Skip", JudgesPerSubmission: 1})
			_, err := svc.TransitionEvent(ctx, ev.ID, model.StatusJudging)

			Convey("Then the transition is invalid", func() {
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When the event is open", func() {
			s := seed(ctx, svc)

			Convey("Then criteria are locked", func() {
				_, err := svc.AddCriterion(ctx, s.event.ID, service.CriterionInput{Name: "Late", ScaleMin: 0, ScaleMax: 1, Weight: 1})
				So(errors.Is(err, model.ErrCriteriaLocked), ShouldBeTrue)
			})

			Convey("Then a participant can submit only once", func() {
				_, err := svc.AddSubmission(ctx, s.event.ID, "p1", nil)
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("Then the summary reflects the seeded records", func() {
				sum, err := svc.GetEvent(ctx, s.event.ID)
				So(err, ShouldBeNil)
				So(sum.Criteria, ShouldHaveLength, 2)
				So(sum.Submissions, ShouldEqual, 2)
				So(sum.Judges, ShouldEqual, 4)
				So(sum.Accepted, ShouldEqual, 3)
			})

			Convey("Then submissions close once judging starts", func() {
				_, err := svc.TransitionEvent(ctx, s.event.ID, model.StatusJudging)
				So(err, ShouldBeNil)
				_, err = svc.AddSubmission(ctx, s.event.ID, "p9", nil)
				So(errors.Is(err, model.ErrEventNotOpen), ShouldBeTrue)
			})
		})

		Convey("When referring to an unknown event", func() {
			_, err := svc.GetEvent(ctx, "nope")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When accepting an invite that was never sent", func() {
			ev, _ := svc.CreateEvent(ctx, service.CreateEventInput{Name: "Inv", JudgesPerSubmission: 1})
			_, err := svc.AcceptInvite(ctx, ev.ID, "ghost")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_PlanAssignments(t *testing.T) {
	Convey("Given a seeded event", t, func() {
		ctx := context.Background()
		svc, notifier := newService()
		defer func() { _ = svc.Stop(ctx) }()
		s := seed(ctx, svc)

		Convey("When planning with the event default target", func() {
			res, err := svc.PlanAssignments(ctx, s.event.ID, 0)
			So(err, ShouldBeNil)

			Convey("Then each submission gets two accepted judges and they are announced", func() {
				So(res.Assignments, ShouldHaveLength, 4)
				So(res.Feasible(), ShouldBeTrue)
				for _, a := range res.Assignments {
					So(a.JudgeID, ShouldNotEqual, "j4")
					So(a.EventID, ShouldEqual, s.event.ID)
				}
				So(notifier.count(), ShouldEqual, 4)
			})

			Convey("Then a second run adds nothing", func() {
				again, err := svc.PlanAssignments(ctx, s.event.ID, 0)
				So(err, ShouldBeNil)
				So(again.Assignments, ShouldBeEmpty)
				So(notifier.count(), ShouldEqual, 4)
			})

			Convey("Then raising the target beyond the judge pool reports under-assignment", func() {
				more, err := svc.PlanAssignments(ctx, s.event.ID, 4)
				So(err, ShouldBeNil)
				So(more.Assignments, ShouldHaveLength, 2)
				So(more.UnderAssigned, ShouldHaveLength, 2)
				So(more.Warnings, ShouldNotBeEmpty)
			})
		})

		Convey("When the notifier fails", func() {
			notifier.err = errors.New("broker down")
			res, err := svc.PlanAssignments(ctx, s.event.ID, 1)

			Convey("Then the assignments are still stored", func() {
				So(err, ShouldBeNil)
				So(res.Assignments, ShouldHaveLength, 2)
				st, err := svc.EventStats(ctx, s.event.ID)
				So(err, ShouldBeNil)
				So(st.TotalAssignments, ShouldEqual, 2)
			})
		})

		Convey("When the event is closed", func() {
			for _, to := range []model.EventStatus{model.StatusJudging, model.StatusClosed} {
				_, err := svc.TransitionEvent(ctx, s.event.ID, to)
				So(err, ShouldBeNil)
			}
			_, err := svc.PlanAssignments(ctx, s.event.ID, 0)

			Convey("Then planning is refused", func() {
				So(errors.Is(err, service.ErrEventClosed), ShouldBeTrue)
			})
		})
	})
}

func TestService_PlanAssignmentsConcurrent(t *testing.T) {
	Convey("Given a seeded event and many concurrent planners", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		svc, notifier := newServiceOn(store)
		defer func() { _ = svc.Stop(ctx) }()
		s := seed(ctx, svc)

		const planners = 8
		var (
			wg      sync.WaitGroup
			created atomic.Int64
			failed  atomic.Int64
		)
		for range planners {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := svc.PlanAssignments(ctx, s.event.ID, 3)
				if err != nil {
					failed.Add(1)
					return
				}
				created.Add(int64(len(res.Assignments)))
			}()
		}
		wg.Wait()

		Convey("Then exactly one planner fills the deficit and no pair is stored twice", func() {
			So(failed.Load(), ShouldEqual, 0)
			So(created.Load(), ShouldEqual, 6)
			So(notifier.count(), ShouldEqual, 6)

			snap, err := store.Snapshot(ctx, s.event.ID)
			So(err, ShouldBeNil)
			So(snap.Assignments, ShouldHaveLength, 6)
			pairs := map[string]bool{}
			for _, a := range snap.Assignments {
				So(pairs[a.Key()], ShouldBeFalse)
				pairs[a.Key()] = true
			}
		})
	})
}

func TestService_Reviews(t *testing.T) {
	Convey("Given a seeded and planned event", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		defer func() { _ = svc.Stop(ctx) }()
		s := seed(ctx, svc)
		plan, err := svc.PlanAssignments(ctx, s.event.ID, 0)
		So(err, ShouldBeNil)

		impact, design := s.criteria[0].ID, s.criteria[1].ID
		first := plan.Assignments[0]

		Convey("When an unassigned judge submits", func() {
			_, err := svc.SubmitReview(ctx, s.event.ID, service.ReviewInput{
				SubmissionID: first.SubmissionID, JudgeID: "j4",
				Scores: map[string]float64{impact: 5, design: 3},
			})

			Convey("Then the review is rejected", func() {
				So(errors.Is(err, model.ErrNotAssigned), ShouldBeTrue)
			})
		})

		Convey("When scores are out of range or incomplete", func() {
			_, errRange := svc.SubmitReview(ctx, s.event.ID, service.ReviewInput{
				SubmissionID: first.SubmissionID, JudgeID: first.JudgeID,
				Scores: map[string]float64{impact: 11, design: 3},
			})
			_, errMissing := svc.SubmitReview(ctx, s.event.ID, service.ReviewInput{
				SubmissionID: first.SubmissionID, JudgeID: first.JudgeID,
				Scores: map[string]float64{impact: 5},
			})

			Convey("Then validation fails", func() {
				So(errors.Is(errRange, model.ErrInvalidScores), ShouldBeTrue)
				So(errors.Is(errMissing, model.ErrInvalidScores), ShouldBeTrue)
			})
		})

		Convey("When a valid review is submitted twice", func() {
			in := service.ReviewInput{
				SubmissionID: first.SubmissionID, JudgeID: first.JudgeID,
				Scores: map[string]float64{impact: 10, design: 5}, IdempotencyKey: "req-1",
			}
			r1, err1 := svc.SubmitReview(ctx, s.event.ID, in)
			r2, err2 := svc.SubmitReview(ctx, s.event.ID, in)

			Convey("Then the second is acknowledged as a duplicate", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(r1.Duplicate, ShouldBeFalse)
				So(r2.Duplicate, ShouldBeTrue)
			})

			Convey("Then the leaderboard picks it up after ingestion", func() {
				ok := eventually(func() bool {
					lb, err := svc.Leaderboard(ctx, s.event.ID)
					return err == nil && len(lb.Scored()) == 1
				})
				So(ok, ShouldBeTrue)

				lb, _ := svc.Leaderboard(ctx, s.event.ID)
				top := lb.Entries[0]
				So(top.SubmissionID, ShouldEqual, first.SubmissionID)
				So(top.Rank, ShouldEqual, 1)
				So(*top.WeightedScore, ShouldAlmostEqual, 10.0)
				So(lb.Unscored(), ShouldHaveLength, 1)
			})
		})

		Convey("When the event is still draft", func() {
			ev, _ := svc.CreateEvent(ctx, service.CreateEventInput{Name: "Draft", JudgesPerSubmission: 1})
			_, err := svc.SubmitReview(ctx, ev.ID, service.ReviewInput{SubmissionID: "s", JudgeID: "j"})

			Convey("Then reviews are not accepted", func() {
				So(errors.Is(err, model.ErrEventNotAcceptingReviews), ShouldBeTrue)
			})
		})

		Convey("When the service is stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			_, err := svc.SubmitReview(ctx, s.event.ID, service.ReviewInput{SubmissionID: "s", JudgeID: "j"})

			Convey("Then submissions are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Reports(t *testing.T) {
	Convey("Given an event where every assigned review is in", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		defer func() { _ = svc.Stop(ctx) }()
		s := seed(ctx, svc)
		plan, err := svc.PlanAssignments(ctx, s.event.ID, 0)
		So(err, ShouldBeNil)

		impact, design := s.criteria[0].ID, s.criteria[1].ID
		// Submission p1 is reviewed high, p2 low; only the first three
		// assignments are reviewed so one stays pending.
		for i, a := range plan.Assignments[:3] {
			scores := map[string]float64{impact: 10, design: 5}
			if a.SubmissionID == s.subs[1].ID {
				scores = map[string]float64{impact: 1, design: 0}
			}
			_, err := svc.SubmitReview(ctx, s.event.ID, service.ReviewInput{
				SubmissionID: a.SubmissionID, JudgeID: a.JudgeID, Scores: scores,
				IdempotencyKey: fmt.Sprintf("k%d", i),
			})
			So(err, ShouldBeNil)
		}
		So(eventually(func() bool {
			st, err := svc.EventStats(ctx, s.event.ID)
			return err == nil && st.TotalReviews == 3
		}), ShouldBeTrue)

		Convey("When computing event statistics", func() {
			st, err := svc.EventStats(ctx, s.event.ID)

			Convey("Then completion is 3 of 4", func() {
				So(err, ShouldBeNil)
				So(st.TotalAssignments, ShouldEqual, 4)
				So(st.CompletedReviews, ShouldEqual, 3)
				So(st.PendingReviews, ShouldEqual, 1)
				So(st.CompletionPercent, ShouldEqual, 75.0)
				So(st.AverageScore, ShouldNotBeNil)
			})
		})

		Convey("When listing pending submissions", func() {
			pending, err := svc.Pending(ctx, s.event.ID)

			Convey("Then exactly one review is outstanding", func() {
				So(err, ShouldBeNil)
				So(pending, ShouldHaveLength, 1)
				So(pending[0].Remaining, ShouldEqual, 1)
				So(pending[0].PendingJudges, ShouldResemble, []string{plan.Assignments[3].JudgeID})
			})
		})

		Convey("When computing judge progress", func() {
			sum, err := svc.JudgeProgress(ctx, s.event.ID)

			Convey("Then totals match the stats", func() {
				So(err, ShouldBeNil)
				So(sum.Assigned, ShouldEqual, 4)
				So(sum.Completed, ShouldEqual, 3)
				So(sum.OverallPercent, ShouldEqual, 75)
				So(sum.Judges, ShouldHaveLength, 3)
			})
		})

		Convey("When computing the bias report", func() {
			rep, err := svc.BiasReport(ctx, s.event.ID, nil)
			zero := 0.0
			strict, err2 := svc.BiasReport(ctx, s.event.ID, &zero)

			Convey("Then the configured and explicit thresholds are applied", func() {
				So(err, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(rep.Threshold, ShouldEqual, 1.0)
				So(strict.Threshold, ShouldEqual, 0.0)
				So(rep.EventAverage, ShouldNotBeNil)
			})
		})

		Convey("When building the dashboard", func() {
			d, err := svc.Dashboard(ctx, s.event.ID)

			Convey("Then all parts come from the same snapshot", func() {
				So(err, ShouldBeNil)
				So(d.Stats.TotalReviews, ShouldEqual, 3)
				So(d.Progress.Completed, ShouldEqual, 3)
				So(d.Leaderboard.Entries, ShouldHaveLength, 2)
				So(d.Leaderboard.Entries[0].SubmissionID, ShouldEqual, s.subs[0].ID)
			})
		})

		Convey("When exporting CSV", func() {
			var buf bytes.Buffer
			err := svc.ExportCSV(ctx, s.event.ID, &buf)

			Convey("Then the header lists the criteria in display order", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldStartWith, "Rank,Submission,Weighted Score,Impact (avg),Design (avg),Review Count\n")
			})
		})

		Convey("When reading service stats", func() {
			processed := eventually(func() bool { return svc.GetStats()["reviewsProcessed"] == int64(3) })
			stats := svc.GetStats()

			Convey("Then pipeline counters are included", func() {
				So(processed, ShouldBeTrue)
				So(stats["started"], ShouldEqual, true)
				So(stats["store"], ShouldHaveSameTypeAs, repository.Counts{})
			})
		})
	})
}
