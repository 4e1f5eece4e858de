package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/juryline/internal/adapters/mq/queue"
	"github.com/okian/juryline/internal/adapters/repository"
	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
)

func TestLeaderboardCache(t *testing.T) {
	convey.Convey("Given a leaderboard cache with a controllable clock", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := newLeaderboardCache(time.Minute, func() time.Time { return now })
		var calls atomic.Int32
		compute := func() (leaderboard.Result, error) {
			calls.Add(1)
			return leaderboard.Result{EventID: "ev"}, nil
		}

		convey.Convey("When the same event is read twice", func() {
			_, _ = c.get("ev", compute)
			res, err := c.get("ev", compute)

			convey.Convey("Then the second read is served from cache", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.EventID, convey.ShouldEqual, "ev")
				convey.So(calls.Load(), convey.ShouldEqual, 1)
				convey.So(c.size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the event is invalidated between reads", func() {
			_, _ = c.get("ev", compute)
			c.invalidate("ev")
			_, _ = c.get("ev", compute)

			convey.Convey("Then it is recomputed", func() {
				convey.So(calls.Load(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the TTL passes", func() {
			_, _ = c.get("ev", compute)
			now = now.Add(2 * time.Minute)
			_, _ = c.get("ev", compute)

			convey.Convey("Then it is recomputed", func() {
				convey.So(calls.Load(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the computation fails", func() {
			boom := errors.New("boom")
			_, err := c.get("ev", func() (leaderboard.Result, error) { return leaderboard.Result{}, boom })

			convey.Convey("Then the error is returned and nothing is cached", func() {
				convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
				convey.So(c.size(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When many readers miss at once", func() {
			release := make(chan struct{})
			slow := func() (leaderboard.Result, error) {
				calls.Add(1)
				<-release
				return leaderboard.Result{EventID: "ev"}, nil
			}
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.get("ev", slow)
				}()
			}
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()

			convey.Convey("Then they share far fewer computations than readers", func() {
				convey.So(calls.Load(), convey.ShouldBeLessThan, 8)
			})
		})
	})

	convey.Convey("Given a cache with caching disabled", t, func() {
		c := newLeaderboardCache(0, time.Now)
		var calls int
		compute := func() (leaderboard.Result, error) {
			calls++
			return leaderboard.Result{}, nil
		}
		_, _ = c.get("ev", compute)
		_, _ = c.get("ev", compute)

		convey.Convey("Then every read computes", func() {
			convey.So(calls, convey.ShouldEqual, 2)
			convey.So(c.size(), convey.ShouldEqual, 0)
		})
	})
}

func TestFingerprint(t *testing.T) {
	convey.Convey("Given two reviews with the same scores in different map order", t, func() {
		a := ReviewInput{SubmissionID: "s", JudgeID: "j", Scores: map[string]float64{"x": 1, "y": 2.5}}
		b := ReviewInput{SubmissionID: "s", JudgeID: "j", Scores: map[string]float64{"y": 2.5, "x": 1}}
		c := ReviewInput{SubmissionID: "s", JudgeID: "j", Scores: map[string]float64{"x": 1, "y": 3}}

		convey.Convey("Then their fingerprints match and a changed score differs", func() {
			convey.So(fingerprint("ev", a), convey.ShouldEqual, fingerprint("ev", b))
			convey.So(fingerprint("ev", a), convey.ShouldNotEqual, fingerprint("ev", c))
			convey.So(fingerprint("ev", a), convey.ShouldStartWith, fingerprintPrefix)
		})
	})
}

func TestSubmitReviewBackpressure(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a service whose queue is full", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		svc := New(store, WithWorkerCount(1), WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		ev, err := svc.CreateEvent(ctx, CreateEventInput{Name: "Full", JudgesPerSubmission: 1})
		convey.So(err, convey.ShouldBeNil)
		c, err := svc.AddCriterion(ctx, ev.ID, CriterionInput{Name: "Only", ScaleMin: 0, ScaleMax: 10, Weight: 1})
		convey.So(err, convey.ShouldBeNil)
		_, _ = svc.InviteJudge(ctx, ev.ID, "j1")
		_, _ = svc.AcceptInvite(ctx, ev.ID, "j1")
		_, err = svc.TransitionEvent(ctx, ev.ID, model.StatusOpen)
		convey.So(err, convey.ShouldBeNil)
		sub, err := svc.AddSubmission(ctx, ev.ID, "p1", nil)
		convey.So(err, convey.ShouldBeNil)
		_, err = svc.PlanAssignments(ctx, ev.ID, 0)
		convey.So(err, convey.ShouldBeNil)

		full := queue.NewInMemoryQueue(queue.WithCapacity(1))
		convey.So(full.Enqueue(ctx, queue.Message{Key: "blocker"}), convey.ShouldBeTrue)
		svc.queue = full

		convey.Convey("When a review is submitted", func() {
			in := ReviewInput{SubmissionID: sub.ID, JudgeID: "j1", Scores: map[string]float64{c.ID: 4}, IdempotencyKey: "k1"}
			_, err := svc.SubmitReview(ctx, ev.ID, in)

			convey.Convey("Then ErrBackpressure is returned and the key is released", func() {
				convey.So(errors.Is(err, ErrBackpressure), convey.ShouldBeTrue)
				convey.So(svc.deduper.Seen(ctx, "k1"), convey.ShouldBeFalse)
			})
		})
	})
}
