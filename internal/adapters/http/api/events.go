package api

import (
	"net/http"

	service "github.com/okian/juryline/internal/app"
	"github.com/okian/juryline/internal/domain/model"
)

// EventsHandler handles event lifecycle, criteria, submissions, judges and
// assignment planning.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleCreate handles POST /events.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event"
	var req createEventRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := h.deps.CreateEvent(r.Context(), service.CreateEventInput{
		Name:                req.Name,
		OrganizerID:         req.OrganizerID,
		JudgesPerSubmission: req.JudgesPerSubmission,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// HandleList handles GET /events.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	evs, err := h.deps.ListEvents(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.list_events", err))
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

// HandleGet handles GET /events/{id}.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.get_event", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleStatus handles PATCH /events/{id}/status.
func (h *EventsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_status"
	var req statusRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := h.deps.TransitionEvent(r.Context(), r.PathValue("id"), model.EventStatus(req.Status))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HandleAddCriterion handles POST /events/{id}/criteria.
func (h *EventsHandler) HandleAddCriterion(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_criterion"
	var req criterionRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.AddCriterion(r.Context(), r.PathValue("id"), service.CriterionInput{
		Name:      req.Name,
		ScaleMin:  *req.ScaleMin,
		ScaleMax:  *req.ScaleMax,
		Weight:    *req.Weight,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleAddSubmission handles POST /events/{id}/submissions.
func (h *EventsHandler) HandleAddSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_submission"
	var req submissionRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := h.deps.AddSubmission(r.Context(), r.PathValue("id"), req.ParticipantID, req.FormData)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleInviteJudge handles POST /events/{id}/judges.
func (h *EventsHandler) HandleInviteJudge(w http.ResponseWriter, r *http.Request) {
	const op = "api.invite_judge"
	var req inviteRequest
	if err := decode(r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	j, err := h.deps.InviteJudge(r.Context(), r.PathValue("id"), req.JudgeID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// HandleAcceptInvite handles POST /events/{id}/judges/{judge}/accept.
func (h *EventsHandler) HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	j, err := h.deps.AcceptInvite(r.Context(), r.PathValue("id"), r.PathValue("judge"))
	if err != nil {
		writeFailure(w, Wrap("api.accept_invite", err))
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// HandlePlan handles POST /events/{id}/assignments/plan. The body is
// optional; target 0 uses the event's judges_per_submission.
func (h *EventsHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.plan_assignments"
	var req planRequest
	if err := decode(r, &req, true); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.PlanAssignments(r.Context(), r.PathValue("id"), req.Target)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
