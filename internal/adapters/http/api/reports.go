package api

import (
	"bytes"
	"math"
	"net/http"
	"strconv"
)

// ReportsHandler serves the read-side reports of an event.
type ReportsHandler struct {
	deps Dependencies
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

// HandleLeaderboard handles GET /events/{id}/leaderboard?limit=N. Without a
// limit the full board is returned.
func (h *ReportsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"
	limit := -1
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeFailure(w, WrapKind(op, ErrBadRequest, strconv.ErrSyntax))
			return
		}
		limit = n
	}

	res, err := h.deps.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	res.Entries = res.Top(limit)
	writeJSON(w, http.StatusOK, res)
}

// HandleProgress handles GET /events/{id}/judge-progress.
func (h *ReportsHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.JudgeProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.judge_progress", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleBias handles GET /events/{id}/bias-report?threshold=X.
func (h *ReportsHandler) HandleBias(w http.ResponseWriter, r *http.Request) {
	const op = "api.bias_report"
	var threshold *float64
	if s := r.URL.Query().Get("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			writeFailure(w, WrapKind(op, ErrBadRequest, strconv.ErrSyntax))
			return
		}
		threshold = &v
	}
	rep, err := h.deps.BiasReport(r.Context(), r.PathValue("id"), threshold)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleStats handles GET /events/{id}/stats.
func (h *ReportsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.EventStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.event_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandlePending handles GET /events/{id}/pending.
func (h *ReportsHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Pending(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.pending", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDashboard handles GET /events/{id}/dashboard.
func (h *ReportsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Dashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap("api.dashboard", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleExport handles GET /events/{id}/export as a CSV attachment.
func (h *ReportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var buf bytes.Buffer
	if err := h.deps.ExportCSV(r.Context(), id, &buf); err != nil {
		writeFailure(w, Wrap("api.export", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard_`+id+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
