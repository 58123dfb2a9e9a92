package api

import (
	"net/http"

	"github.com/seantiz/runjs/internal/ledger"
	"github.com/seantiz/runjs/internal/ops"
)

// listOpsResponse is the JSON response for GET /v1/ops.
type listOpsResponse struct {
	Ops []ops.Info `json:"ops"`
}

func (s *Server) handleListOps(w http.ResponseWriter, _ *http.Request) {
	infos := []ops.Info{}
	if s.registry != nil {
		infos = s.registry.List()
	}
	s.writeJSON(w, http.StatusOK, listOpsResponse{Ops: infos})
}

// tasksResponse is the JSON response for GET /v1/tasks.
type tasksResponse struct {
	Registered []string `json:"registered"`
	Assigned   []string `json:"assigned"`
	Poisoned   bool     `json:"poisoned"`
}

func (s *Server) handleGetTasks(w http.ResponseWriter, _ *http.Request) {
	var snap ledger.Snapshot
	if s.ledger != nil {
		snap = s.ledger.Snapshot()
	}

	resp := tasksResponse{
		Registered: snap.Registered,
		Assigned:   snap.Assigned,
		Poisoned:   snap.Poisoned,
	}
	if resp.Registered == nil {
		resp.Registered = []string{}
	}
	if resp.Assigned == nil {
		resp.Assigned = []string{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
