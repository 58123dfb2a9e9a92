package api

import (
	"encoding/json"
	"net/http"

	"github.com/seantiz/runjs/internal/ledger"
)

// taskLedger is the part of the ledger the health check reads.
type taskLedger interface {
	Snapshot() ledger.Snapshot
}

type healthResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Tasks  int    `json:"tasks_pending"`
}

// handleHealthz reports 503 once the task ledger is poisoned, since no
// worker can register or claim tasks after that.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", RunID: s.runID}
	code := http.StatusOK
	if s.tasks != nil {
		snap := s.tasks.Snapshot()
		resp.Tasks = len(snap.Registered)
		if snap.Poisoned {
			resp.Status = "ledger poisoned"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
