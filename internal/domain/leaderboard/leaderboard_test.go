package leaderboard_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sub(id string, minute int) model.Submission {
	return model.Submission{ID: id, ParticipantID: "p-" + id, CreatedAt: t0.Add(time.Duration(minute) * time.Minute)}
}

func review(id, subID, judge string, score float64) model.Review {
	return model.Review{ID: id, SubmissionID: subID, JudgeID: judge, Scores: map[string]float64{"c": score}}
}

func ids(r leaderboard.Result) []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.SubmissionID)
	}
	return out
}

func ranks(r leaderboard.Result) []int {
	out := make([]int, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Rank)
	}
	return out
}

func TestBuild(t *testing.T) {
	Convey("Given an event with one [0,10] criterion", t, func() {
		ev := &model.Event{ID: "ev-1", JudgesPerSubmission: 2}
		criteria := []model.Criterion{{ID: "c", Name: "Overall", ScaleMin: 0, ScaleMax: 10, Weight: 1}}

		Convey("When two submissions are unscored", func() {
			subs := []model.Submission{sub("late", 5), sub("early", 1)}
			res, err := leaderboard.Build(ev, criteria, subs, nil)

			Convey("Then both are listed unscored, ordered by creation time", func() {
				So(err, ShouldBeNil)
				So(ids(res), ShouldResemble, []string{"early", "late"})
				for _, e := range res.Entries {
					So(e.WeightedScore, ShouldBeNil)
					So(e.Scored, ShouldBeFalse)
					So(e.Rank, ShouldEqual, 0)
				}
				So(res.Scored(), ShouldBeEmpty)
				So(len(res.Unscored()), ShouldEqual, 2)
			})
		})

		Convey("When scores tie after rounding", func() {
			subs := []model.Submission{sub("a", 0), sub("b", 1), sub("c", 2), sub("d", 3)}
			reviews := []model.Review{
				review("r1", "a", "j1", 8),
				review("r2", "b", "j1", 9),
				review("r3", "c", "j1", 8.04),
				review("r4", "d", "j1", 6),
			}
			res, err := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then competition ranking leaves a gap", func() {
				So(err, ShouldBeNil)
				So(ids(res), ShouldResemble, []string{"b", "c", "a", "d"})
				So(ranks(res), ShouldResemble, []int{1, 2, 2, 4})
			})
		})

		Convey("When equal scores differ in review count", func() {
			subs := []model.Submission{sub("few", 0), sub("many", 1)}
			reviews := []model.Review{
				review("r1", "few", "j1", 7),
				review("r2", "many", "j1", 7),
				review("r3", "many", "j2", 7),
			}
			res, _ := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then more reviews rank first while sharing the rank", func() {
				So(ids(res), ShouldResemble, []string{"many", "few"})
				So(ranks(res), ShouldResemble, []int{1, 1})
				So(res.Entries[0].ReviewCount, ShouldEqual, 2)
			})
		})

		Convey("When the finer score disagrees with the review count", func() {
			subs := []model.Submission{sub("many", 0), sub("few", 1)}
			reviews := []model.Review{
				review("r1", "many", "j1", 7.21),
				review("r2", "many", "j2", 7.21),
				review("r3", "few", "j1", 7.24),
			}
			res, _ := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then the higher weighted score is listed first and the rank is shared", func() {
				So(ids(res), ShouldResemble, []string{"few", "many"})
				So(ranks(res), ShouldResemble, []int{1, 1})
				So(*res.Entries[0].DisplayScore, ShouldEqual, *res.Entries[1].DisplayScore)
			})
		})

		Convey("When scores, counts and creation times tie", func() {
			subs := []model.Submission{sub("z", 0), sub("y", 0)}
			reviews := []model.Review{review("r1", "z", "j1", 5), review("r2", "y", "j1", 5)}
			res, _ := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then submission ID decides", func() {
				So(ids(res), ShouldResemble, []string{"y", "z"})
			})
		})

		Convey("When scored and unscored submissions mix", func() {
			subs := []model.Submission{sub("none", 0), sub("low", 1), sub("high", 2)}
			reviews := []model.Review{review("r1", "low", "j1", 2), review("r2", "high", "j2", 9)}
			res, _ := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then the unscored tail comes last", func() {
				So(ids(res), ShouldResemble, []string{"high", "low", "none"})
				So(ranks(res), ShouldResemble, []int{1, 2, 0})
				So(len(res.Top(2)), ShouldEqual, 2)
				So(len(res.Top(10)), ShouldEqual, 3)
			})
		})

		Convey("When computed twice on identical input", func() {
			subs := []model.Submission{sub("a", 0), sub("b", 0), sub("c", 0)}
			reviews := []model.Review{review("r1", "a", "j", 5), review("r2", "b", "j", 5), review("r3", "c", "j", 9)}
			first, _ := leaderboard.Build(ev, criteria, subs, reviews)
			second, _ := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then order and scores are identical", func() {
				So(ids(first), ShouldResemble, ids(second))
				So(ranks(first), ShouldResemble, ranks(second))
				for i := range first.Entries {
					So(*first.Entries[i].WeightedScore, ShouldEqual, *second.Entries[i].WeightedScore)
				}
			})
		})

		Convey("When reviews reference orphaned criteria or unknown submissions", func() {
			subs := []model.Submission{sub("a", 0)}
			reviews := []model.Review{
				{ID: "r1", SubmissionID: "a", JudgeID: "j1", Scores: map[string]float64{"c": 6, "deleted": 3}},
				review("r2", "ghost", "j1", 4),
			}
			res, err := leaderboard.Build(ev, criteria, subs, reviews)

			Convey("Then aggregation continues and the issues are reported", func() {
				So(err, ShouldBeNil)
				So(*res.Entries[0].WeightedScore, ShouldAlmostEqual, 6.0)
				So(len(res.Issues), ShouldEqual, 2)
				counts := scoring.CountByKind(res.Issues)
				So(counts[scoring.IssueUnknownCriterion], ShouldEqual, 1)
				So(counts[scoring.IssueUnknownSubmission], ShouldEqual, 1)
			})
		})

		Convey("When the breakdown is inspected", func() {
			multi := []model.Criterion{
				{ID: "c2", Name: "Second", ScaleMin: 0, ScaleMax: 5, Weight: 2, SortOrder: 1},
				{ID: "c1", Name: "First", ScaleMin: 0, ScaleMax: 10, Weight: 1, SortOrder: 0},
				{ID: "c3", Name: "Third", ScaleMin: 1, ScaleMax: 3, Weight: 1, SortOrder: 2},
			}
			subs := []model.Submission{sub("a", 0)}
			reviews := []model.Review{{ID: "r1", SubmissionID: "a", JudgeID: "j1", Scores: map[string]float64{"c1": 8, "c2": 4, "c3": 2}}}
			res, _ := leaderboard.Build(ev, multi, subs, reviews)

			Convey("Then criteria appear in display order with raw averages", func() {
				e := res.Entries[0]
				So(*e.WeightedScore, ShouldAlmostEqual, 7.25, 1e-9)
				So(*e.DisplayScore, ShouldEqual, 7.3)
				So(e.Criteria[0].CriterionID, ShouldEqual, "c1")
				So(*e.Criteria[1].Average, ShouldEqual, 4.0)
				So(res.Criteria[2].ID, ShouldEqual, "c3")
			})
		})

		Convey("When there are no submissions", func() {
			res, err := leaderboard.Build(ev, criteria, nil, nil)

			Convey("Then the leaderboard is empty, not an error", func() {
				So(err, ShouldBeNil)
				So(res.Entries, ShouldBeEmpty)
			})
		})
	})

	Convey("Given structurally invalid input", t, func() {
		Convey("When the event is nil", func() {
			_, err := leaderboard.Build(nil, []model.Criterion{}, nil, nil)
			So(errors.Is(err, leaderboard.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the criteria list is nil", func() {
			_, err := leaderboard.Build(&model.Event{ID: "ev"}, nil, nil, nil)
			So(errors.Is(err, leaderboard.ErrInvalidInput), ShouldBeTrue)
		})
	})
}
