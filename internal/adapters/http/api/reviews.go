package api

import (
	"errors"
	"net/http"

	service "github.com/okian/juryline/internal/app"
)

// ReviewsHandler accepts reviews for asynchronous ingestion.
type ReviewsHandler struct {
	deps Dependencies
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(deps Dependencies) *ReviewsHandler {
	return &ReviewsHandler{deps: deps}
}

// HandlePost handles POST /events/{id}/reviews: 202 when queued, 200 for a
// duplicate, 429 when the queue is full.
func (h *ReviewsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_review"
	var req reviewRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}
	res, err := h.deps.SubmitReview(r.Context(), r.PathValue("id"), service.ReviewInput{
		SubmissionID:   req.SubmissionID,
		JudgeID:        req.JudgeID,
		Scores:         req.Scores,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	switch {
	case errors.Is(err, service.ErrBackpressure):
		writeFailure(w, WrapKind(op, ErrBackpressure, err))
		return
	case err != nil:
		writeFailure(w, Wrap(op, err))
		return
	case res.Duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, Key: res.Key})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Key: res.Key})
}
