package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/juryline/internal/adapters/http/api"
	"github.com/okian/juryline/internal/adapters/repository"
	service "github.com/okian/juryline/internal/app"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type harness struct {
	mux *http.ServeMux
	svc *service.Service
}

func newHarness(limiter *api.RateLimiter) *harness {
	ctx := context.Background()
	svc := service.New(repository.NewMemoryStore(ctx),
		service.WithWorkerCount(2),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, limiter).Register(mux)
	return &harness{mux: mux, svc: svc}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func errorCode(w *httptest.ResponseRecorder) string {
	return decodeBody[map[string]string](w)["code"]
}

func TestServer_EventFlow(t *testing.T) {
	Convey("Given a server over a running service", t, func() {
		h := newHarness(nil)
		defer func() { _ = h.svc.Stop(context.Background()) }()

		w := h.do("POST", "/events", `{"name":"Hack Week","judges_per_submission":2}`)
		So(w.Code, ShouldEqual, http.StatusCreated)
		ev := decodeBody[model.Event](w)
		So(ev.Status, ShouldEqual, model.StatusDraft)
		base := "/events/" + ev.ID

		w = h.do("POST", base+"/criteria", `{"name":"Impact","scale_min":0,"scale_max":10,"weight":1,"sort_order":1}`)
		So(w.Code, ShouldEqual, http.StatusCreated)
		crit := decodeBody[model.Criterion](w)

		for _, j := range []string{"j1", "j2", "j3"} {
			So(h.do("POST", base+"/judges", `{"judge_id":"`+j+`"}`).Code, ShouldEqual, http.StatusCreated)
			So(h.do("POST", base+"/judges/"+j+"/accept", "").Code, ShouldEqual, http.StatusOK)
		}
		So(h.do("PATCH", base+"/status", `{"status":"open"}`).Code, ShouldEqual, http.StatusOK)

		var subs []model.Submission
		for _, p := range []string{"p1", "p2"} {
			w = h.do("POST", base+"/submissions", `{"participant_id":"`+p+`","form_data":{"title":"x"}}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			subs = append(subs, decodeBody[model.Submission](w))
		}

		w = h.do("POST", base+"/assignments/plan", "")
		So(w.Code, ShouldEqual, http.StatusOK)
		plan := decodeBody[struct {
			Assignments []model.Assignment `json:"assignments"`
		}](w)
		So(plan.Assignments, ShouldHaveLength, 4)

		Convey("When a review is posted twice", func() {
			a := plan.Assignments[0]
			body := fmt.Sprintf(`{"submission_id":%q,"judge_id":%q,"scores":{%q:8}}`, a.SubmissionID, a.JudgeID, crit.ID)
			first := h.do("POST", base+"/reviews", body)
			second := h.do("POST", base+"/reviews", body)

			Convey("Then it is accepted once and acknowledged as duplicate after", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[map[string]any](second)["duplicate"], ShouldEqual, true)
			})

			Convey("Then the leaderboard eventually ranks the reviewed submission first", func() {
				var board struct {
					Entries []struct {
						SubmissionID string `json:"submission_id"`
						Rank         int    `json:"rank"`
						Scored       bool   `json:"scored"`
					} `json:"entries"`
				}
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					w := h.do("GET", base+"/leaderboard", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					_ = json.Unmarshal(w.Body.Bytes(), &board)
					if len(board.Entries) > 0 && board.Entries[0].Scored {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(board.Entries, ShouldHaveLength, 2)
				So(board.Entries[0].SubmissionID, ShouldEqual, a.SubmissionID)
				So(board.Entries[0].Rank, ShouldEqual, 1)
				So(board.Entries[1].Scored, ShouldBeFalse)

				limited := h.do("GET", base+"/leaderboard?limit=1", "")
				So(limited.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[map[string]any](limited)["entries"], ShouldHaveLength, 1)
			})
		})

		Convey("When a review is posted by an unassigned judge", func() {
			body := fmt.Sprintf(`{"submission_id":%q,"judge_id":"j9","scores":{%q:8}}`, subs[0].ID, crit.ID)
			w := h.do("POST", base+"/reviews", body)

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(errorCode(w), ShouldEqual, "not_assigned")
			})
		})

		Convey("When a review has an out-of-range score", func() {
			a := plan.Assignments[0]
			body := fmt.Sprintf(`{"submission_id":%q,"judge_id":%q,"scores":{%q:11}}`, a.SubmissionID, a.JudgeID, crit.ID)
			w := h.do("POST", base+"/reviews", body)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When reading the report endpoints", func() {
			Convey("Then each answers with JSON", func() {
				for _, p := range []string{"", "/judge-progress", "/bias-report?threshold=1.5", "/stats", "/pending", "/dashboard"} {
					w := h.do("GET", base+p, "")
					So(w.Code, ShouldEqual, http.StatusOK)
					So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				}
			})

			Convey("Then the bias threshold is echoed", func() {
				w := h.do("GET", base+"/bias-report?threshold=1.5", "")
				So(decodeBody[map[string]any](w)["threshold"], ShouldEqual, 1.5)
			})

			Convey("Then export returns CSV", func() {
				w := h.do("GET", base+"/export", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Body.String(), ShouldStartWith, "Rank,Submission,Weighted Score,Impact (avg),Review Count")
			})
		})

		Convey("When sending invalid input", func() {
			Convey("Then a bad threshold is rejected", func() {
				w := h.do("GET", base+"/bias-report?threshold=abc", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			})

			Convey("Then a bad limit is rejected", func() {
				So(h.do("GET", base+"/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then unknown status values are rejected", func() {
				So(h.do("PATCH", base+"/status", `{"status":"archived"}`).Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then an illegal transition conflicts", func() {
				w := h.do("PATCH", base+"/status", `{"status":"closed"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(w), ShouldEqual, "conflict")
			})

			Convey("Then adding criteria after opening conflicts", func() {
				w := h.do("POST", base+"/criteria", `{"name":"Late","scale_min":0,"scale_max":5,"weight":1}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then a criterion missing its scale is rejected", func() {
				w := h.do("POST", base+"/criteria", `{"name":"Half","scale_max":5,"weight":1}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then unknown fields are rejected", func() {
				w := h.do("POST", "/events", `{"name":"x","judges_per_submission":1,"colour":"red"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then unknown events are not found", func() {
				w := h.do("GET", "/events/missing/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})
		})

		Convey("When hitting the service endpoints", func() {
			Convey("Then health serves metrics and stats serve JSON", func() {
				So(h.do("GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
				w := h.do("GET", "/stats", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[map[string]any](w)["started"], ShouldEqual, true)
				So(h.do("GET", "/events", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

// backpressureDeps answers every review with a full queue.
type backpressureDeps struct {
	api.Dependencies
}

func (backpressureDeps) SubmitReview(context.Context, string, service.ReviewInput) (service.SubmitResult, error) {
	return service.SubmitResult{}, service.ErrBackpressure
}

type staticStats map[string]any

func (s staticStats) GetStats() map[string]any { return s }

func TestServer_Backpressure(t *testing.T) {
	Convey("Given a service whose queue is full", t, func() {
		mux := http.NewServeMux()
		api.NewServer(backpressureDeps{}, staticStats{}, nil).Register(mux)

		Convey("When a review is posted", func() {
			req := httptest.NewRequest("POST", "/events/ev/reviews", strings.NewReader(`{"submission_id":"s","judge_id":"j","scores":{"c":1}}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then 429 backpressure is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})
	})
}

func TestRateLimiter(t *testing.T) {
	Convey("Given a server limited to one write per second", t, func() {
		h := newHarness(api.NewRateLimiter(1, 1))
		defer func() { _ = h.svc.Stop(context.Background()) }()

		Convey("When two writes arrive back to back", func() {
			first := h.do("POST", "/events", `{"name":"a","judges_per_submission":1}`)
			second := h.do("POST", "/events", `{"name":"b","judges_per_submission":1}`)
			read := h.do("GET", "/events", "")

			Convey("Then the second is rejected and reads are unaffected", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(second), ShouldEqual, "rate_limited")
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
				So(read.Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a non-positive rate", t, func() {
		Convey("Then limiting is disabled", func() {
			So(api.NewRateLimiter(0, 10), ShouldBeNil)
		})
	})
}

func TestErrorWrapping(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")
		kinded := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both kind and cause are visible to errors.Is", func() {
			So(errors.Is(kinded, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(kinded, cause), ShouldBeTrue)
			So(kinded.Error(), ShouldEqual, "api.op: bad request: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrBackpressure).Error(), ShouldEqual, "api.op: backpressure")
		})
	})
}
