package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/runjs/internal/model"
	"github.com/seantiz/runjs/internal/store"
)

// listWorkersResponse is the JSON response for GET /v1/workers.
type listWorkersResponse struct {
	RunID   string          `json:"run_id,omitempty"`
	Workers []*model.Worker `json:"workers"`
	Total   int             `json:"total"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.store.ListWorkers(r.Context(), s.runID)
	if err != nil {
		s.logger.Error("list workers", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list workers")
		return
	}

	s.writeJSON(w, http.StatusOK, listWorkersResponse{
		RunID:   s.runID,
		Workers: workers,
		Total:   len(workers),
	})
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookupWorker(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, wk)
}

// lookupWorker loads the worker named by the {id} URL parameter, writing a
// 404 or 500 response when it cannot.
func (s *Server) lookupWorker(w http.ResponseWriter, r *http.Request) (*model.Worker, bool) {
	id := chi.URLParam(r, "id")

	wk, err := s.store.GetWorker(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "worker not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get worker", "worker_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get worker")
		return nil, false
	}
	return wk, true
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
