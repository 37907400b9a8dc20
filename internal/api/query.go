package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/rag"
	"github.com/lectern/lectern/internal/tools"
)

// maxQueryBodySize bounds the request body of the query endpoint (64 KiB).
const maxQueryBodySize = 64 << 10

// QueryService is the slice of the question-answering system the API
// consumes.
type QueryService interface {
	Query(ctx context.Context, query, sessionID string) (*rag.QueryResponse, error)
	Stats() rag.CourseStats
	ClearSession(id string)
}

// queryHandler serves the question-answering and analytics endpoints.
type queryHandler struct {
	service QueryService
	logger  log.Logger
}

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// query answers one user question.
func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON", h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		return
	}

	resp, err := h.service.Query(r.Context(), req.Query, req.SessionID)
	switch {
	case errors.Is(err, rag.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is listening for the response.
		return
	case err != nil:
		h.logger.Error("answering query",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, "generation_failed", "failed to generate an answer", h.logger)
		return
	}

	// Sources marshal as [] rather than null for frontend convenience.
	if resp.Sources == nil {
		resp.Sources = []tools.Source{}
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// courses returns corpus analytics.
func (h *queryHandler) courses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats(), h.logger)
}

// clearSession drops one conversation's history.
func (h *queryHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_session", "session id is required", h.logger)
		return
	}
	h.service.ClearSession(id)
	w.WriteHeader(http.StatusNoContent)
}
