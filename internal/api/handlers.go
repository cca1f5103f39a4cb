// Package api exposes the triage service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nealali/agentic-triage-copilot/internal/models"
	"github.com/nealali/agentic-triage-copilot/internal/store"
	"github.com/nealali/agentic-triage-copilot/internal/triage"
)

// Handler routes HTTP requests to the triage service.
type Handler struct {
	svc    *triage.Service
	logger *slog.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(svc *triage.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Router assembles the chi router with middleware and all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlationMiddleware)

	r.Get("/health", h.health)

	r.Route("/issues", func(r chi.Router) {
		r.Post("/", h.createIssue)
		r.Get("/", h.listIssues)
		r.Route("/{issueID}", func(r chi.Router) {
			r.Get("/", h.getIssue)
			r.Post("/analyze", h.analyzeIssue)
			r.Get("/runs", h.listRuns)
			r.Get("/runs/{runID}", h.getRun)
			r.Post("/decisions", h.recordDecision)
			r.Get("/decisions", h.listDecisions)
		})
	})

	r.Get("/audit", h.listAuditEvents)
	r.Get("/eval/scorecard", h.scorecard)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.addDocument)
		r.Get("/", h.listDocuments)
		r.Get("/search", h.searchDocuments)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request) {
	var payload models.IssueCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, triage.ErrValidation)
		return
	}
	issue, err := h.svc.CreateIssue(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, issue)
}

func (h *Handler) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueFilter{
		Status: models.IssueStatus(r.URL.Query().Get("status")),
		Domain: models.IssueDomain(r.URL.Query().Get("domain")),
	}
	issues, err := h.svc.ListIssues(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, issues)
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	issue, err := h.svc.GetIssue(r.Context(), issueID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, issue)
}

func (h *Handler) analyzeIssue(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	var req models.AnalyzeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, triage.ErrValidation)
			return
		}
	}
	run, err := h.svc.AnalyzeIssue(r.Context(), issueID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, run)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	runs, err := h.svc.ListRuns(r.Context(), issueID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summaries := make([]models.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, run.Summary())
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	runID, ok := h.pathUUID(w, r, "runID")
	if !ok {
		return
	}
	run, err := h.svc.GetRun(r.Context(), runID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if run.IssueID != issueID {
		h.writeError(w, triage.ErrNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) recordDecision(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	var payload models.DecisionCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, triage.ErrValidation)
		return
	}
	decision, err := h.svc.RecordDecision(r.Context(), issueID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, decision)
}

func (h *Handler) listDecisions(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.pathUUID(w, r, "issueID")
	if !ok {
		return
	}
	decisions, err := h.svc.ListDecisions(r.Context(), issueID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, decisions)
}

func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	var filter store.AuditFilter
	if raw := r.URL.Query().Get("issue_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, triage.ErrValidation)
			return
		}
		filter.IssueID = &id
	}
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, triage.ErrValidation)
			return
		}
		filter.RunID = &id
	}
	events, err := h.svc.ListAuditEvents(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) scorecard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Scorecard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) addDocument(w http.ResponseWriter, r *http.Request) {
	var payload models.DocumentCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, triage.ErrValidation)
		return
	}
	doc, err := h.svc.AddDocument(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) searchDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, triage.ErrValidation)
		return
	}
	hits, err := h.svc.SearchDocuments(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hits)
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, triage.ErrValidation)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, triage.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, triage.ErrNotFound):
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
