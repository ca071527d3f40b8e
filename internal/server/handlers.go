package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"courserag/internal/domain"
)

// QueryRequest is the body of POST /api/query. A missing session id means a
// fresh session is created for the caller.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse carries the answer with its retrieval sources.
type QueryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []domain.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.svc.CreateSession()
	}
	s.logger.Debug("query request", zap.String("session_id", sessionID))

	answer, sources, err := s.svc.Query(r.Context(), req.Query, sessionID)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	s.respondJSON(w, http.StatusOK, QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.svc.Analytics(r.Context())
	if err != nil {
		s.logger.Error("analytics failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "analytics failed")
		return
	}
	s.respondJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.svc.ClearSession(id)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
