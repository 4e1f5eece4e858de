// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/juryline/internal/adapters/repository"
	service "github.com/okian/juryline/internal/app"
	"github.com/okian/juryline/internal/domain/assignment"
	"github.com/okian/juryline/internal/domain/bias"
	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/internal/domain/model"
	"github.com/okian/juryline/internal/domain/progress"
	"github.com/okian/juryline/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the application service.
type Dependencies interface {
	CreateEvent(ctx context.Context, in service.CreateEventInput) (model.Event, error)
	GetEvent(ctx context.Context, eventID string) (service.EventSummary, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	TransitionEvent(ctx context.Context, eventID string, to model.EventStatus) (model.Event, error)
	AddCriterion(ctx context.Context, eventID string, in service.CriterionInput) (model.Criterion, error)
	AddSubmission(ctx context.Context, eventID, participantID string, form map[string]any) (model.Submission, error)
	InviteJudge(ctx context.Context, eventID, judgeID string) (model.EventJudge, error)
	AcceptInvite(ctx context.Context, eventID, judgeID string) (model.EventJudge, error)

	PlanAssignments(ctx context.Context, eventID string, target int) (assignment.Result, error)
	// SubmitReview queues a review. Returns service.ErrBackpressure when the
	// queue is full.
	SubmitReview(ctx context.Context, eventID string, in service.ReviewInput) (service.SubmitResult, error)

	Leaderboard(ctx context.Context, eventID string) (leaderboard.Result, error)
	JudgeProgress(ctx context.Context, eventID string) (progress.Summary, error)
	BiasReport(ctx context.Context, eventID string, threshold *float64) (bias.Report, error)
	EventStats(ctx context.Context, eventID string) (types.EventStats, error)
	Pending(ctx context.Context, eventID string) ([]types.PendingSubmission, error)
	Dashboard(ctx context.Context, eventID string) (service.Dashboard, error)
	ExportCSV(ctx context.Context, eventID string, w io.Writer) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	reviewsHandler *ReviewsHandler
	reportsHandler *ReportsHandler
	limiter        *RateLimiter
}

// NewServer creates a new API server with all handlers. A nil limiter
// disables write rate limiting.
func NewServer(deps Dependencies, statsProvider StatsProvider, limiter *RateLimiter) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		eventsHandler:  NewEventsHandler(deps),
		reviewsHandler: NewReviewsHandler(deps),
		reportsHandler: NewReportsHandler(deps),
		limiter:        limiter,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	write := func(h http.HandlerFunc) http.HandlerFunc { return s.limiter.Middleware(h) }

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	e := s.eventsHandler
	mux.HandleFunc("POST /events", MetricsMiddleware(write(e.HandleCreate), "events"))
	mux.HandleFunc("GET /events", MetricsMiddleware(e.HandleList, "events"))
	mux.HandleFunc("GET /events/{id}", MetricsMiddleware(e.HandleGet, "event"))
	mux.HandleFunc("PATCH /events/{id}/status", MetricsMiddleware(write(e.HandleStatus), "event_status"))
	mux.HandleFunc("POST /events/{id}/criteria", MetricsMiddleware(write(e.HandleAddCriterion), "criteria"))
	mux.HandleFunc("POST /events/{id}/submissions", MetricsMiddleware(write(e.HandleAddSubmission), "submissions"))
	mux.HandleFunc("POST /events/{id}/judges", MetricsMiddleware(write(e.HandleInviteJudge), "judges"))
	mux.HandleFunc("POST /events/{id}/judges/{judge}/accept", MetricsMiddleware(write(e.HandleAcceptInvite), "judge_accept"))
	mux.HandleFunc("POST /events/{id}/assignments/plan", MetricsMiddleware(write(e.HandlePlan), "assignments_plan"))

	mux.HandleFunc("POST /events/{id}/reviews", MetricsMiddleware(write(s.reviewsHandler.HandlePost), "reviews"))

	rp := s.reportsHandler
	mux.HandleFunc("GET /events/{id}/leaderboard", MetricsMiddleware(rp.HandleLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /events/{id}/judge-progress", MetricsMiddleware(rp.HandleProgress, "judge_progress"))
	mux.HandleFunc("GET /events/{id}/bias-report", MetricsMiddleware(rp.HandleBias, "bias_report"))
	mux.HandleFunc("GET /events/{id}/stats", MetricsMiddleware(rp.HandleStats, "event_stats"))
	mux.HandleFunc("GET /events/{id}/pending", MetricsMiddleware(rp.HandlePending, "pending"))
	mux.HandleFunc("GET /events/{id}/dashboard", MetricsMiddleware(rp.HandleDashboard, "dashboard"))
	mux.HandleFunc("GET /events/{id}/export", MetricsMiddleware(rp.HandleExport, "export"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and code and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// classify translates domain errors to HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidCriterion),
		errors.Is(err, model.ErrInvalidScores):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrNotAssigned),
		errors.Is(err, model.ErrJudgeNotAccepted):
		return http.StatusForbidden, "not_assigned"
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrNoCriteria),
		errors.Is(err, model.ErrCriteriaLocked),
		errors.Is(err, model.ErrEventNotAcceptingReviews),
		errors.Is(err, model.ErrEventNotOpen),
		errors.Is(err, service.ErrEventClosed),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
