// HTTP handlers for the tracker service.
//
// Routes:
//
//	GET   /jobs?range=12h|24h|48h|7d  → list view
//	GET   /jobs/{id}                   → detail view
//	GET   /jobs/{id}/history           → every history entry, oldest first
//	POST  /jobs/{id}/state             → record a state (and optional notes)
//	PATCH /jobs/{id}/notes             → replace notes, keep state
//	GET   /status/credits              → remaining TheirStack API credits
//
// Every route is also served under /api/v1. An optional x-user-id header is
// stored as the entry's actor.

package kanban

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/model"
)

// APIPrefix is the versioned mount point used by the web frontend.
const APIPrefix = "/api/v1"

// CreditChecker reports remaining upstream API credits.
type CreditChecker interface {
	Credits(ctx context.Context) (int, error)
}

// ─── Response types ───────────────────────────────────────────────────────────

// StateResponse is returned by the write endpoints.
type StateResponse struct {
	JobID string      `json:"job_id"`
	State model.State `json:"state"`
	Notes string      `json:"notes"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	svc     *Service
	credits CreditChecker
	metrics *metrics.Metrics
}

// NewHandler returns a configured Handler. credits and m may be nil.
func NewHandler(svc *Service, credits CreditChecker, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, credits: credits, metrics: m}
}

// RegisterRoutes mounts all tracker routes on mux, at the root and under
// APIPrefix.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.register(mux)

	api := http.NewServeMux()
	h.register(api)
	mux.Handle(APIPrefix+"/", http.StripPrefix(APIPrefix, api))
}

func (h *Handler) register(mux *http.ServeMux) {
	h.handle(mux, "GET /jobs", h.listJobs)
	h.handle(mux, "GET /jobs/{id}", h.getJob)
	h.handle(mux, "GET /jobs/{id}/history", h.history)
	h.handle(mux, "POST /jobs/{id}/state", h.recordState)
	h.handle(mux, "PATCH /jobs/{id}/notes", h.editNotes)
	h.handle(mux, "GET /status/credits", h.getCredits)
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	if h.metrics == nil {
		mux.HandleFunc(pattern, fn)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		h.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
	})
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListJobs(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, jobs)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, entries)
}

func (h *Handler) recordState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State *string `json:"state"`
		Notes *string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.svc.RecordState(r.Context(), r.PathValue("id"), body.State, body.Notes, r.Header.Get("x-user-id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, StateResponse{JobID: entry.JobID, State: entry.State, Notes: entry.Notes})
}

func (h *Handler) editNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes *string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Notes == nil {
		writeError(w, &ValidationError{Msg: "body must contain notes"})
		return
	}

	entry, err := h.svc.EditNotes(r.Context(), r.PathValue("id"), *body.Notes, r.Header.Get("x-user-id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, StateResponse{JobID: entry.JobID, State: entry.State, Notes: entry.Notes})
}

func (h *Handler) getCredits(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		jsonError(w, "credit lookup not configured", "Unavailable", http.StatusServiceUnavailable)
		return
	}
	n, err := h.credits.Credits(r.Context())
	if err != nil {
		slog.Warn("credit lookup failed", "err", err)
		jsonError(w, err.Error(), "UpstreamFetchFailure", http.StatusBadGateway)
		return
	}
	jsonOK(w, map[string]int{"remaining_credits": n})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// decodeBody decodes a JSON object. An empty body decodes as {}.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Msg: "invalid JSON body"}
	}
	return nil
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, err.Error(), "NotFound", http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidState):
		jsonError(w, err.Error(), "InvalidState", http.StatusBadRequest)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, "ValidationError", http.StatusBadRequest)
	default:
		slog.Error("request failed", "err", err)
		jsonError(w, "internal server error", "Internal", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonError(w http.ResponseWriter, msg, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code}) //nolint:errcheck
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
