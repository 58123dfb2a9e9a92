package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/runjs/internal/model"
)

// createWorker stores a worker record for runID and walks it through statuses.
func createWorker(t *testing.T, srv *Server, runID string, statuses ...string) *model.Worker {
	t.Helper()
	ctx := context.Background()
	wk := &model.Worker{
		ID:         model.NewID(),
		RunID:      runID,
		Status:     model.StatusCreated,
		MainModule: "file:///tmp/main.js",
		CreatedAt:  time.Now().UTC(),
	}
	if err := srv.store.CreateWorker(ctx, wk); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	for _, status := range statuses {
		if err := srv.store.UpdateWorkerStatus(ctx, wk.ID, status); err != nil {
			t.Fatalf("UpdateWorkerStatus(%s): %v", status, err)
		}
	}
	return wk
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestListWorkersScopedToRun(t *testing.T) {
	srv := newTestServer(t)
	srv.runID = "run-a"
	createWorker(t, srv, "run-a")
	createWorker(t, srv, "run-a", model.StatusBootstrapped)
	createWorker(t, srv, "run-b")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body listWorkersResponse
	if code := getJSON(t, ts.URL+"/v1/workers", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body.RunID != "run-a" {
		t.Errorf("run_id = %q, want %q", body.RunID, "run-a")
	}
	if body.Total != 2 || len(body.Workers) != 2 {
		t.Fatalf("got %d workers (total %d), want 2", len(body.Workers), body.Total)
	}
	for _, wk := range body.Workers {
		if wk.RunID != "run-a" {
			t.Errorf("worker %s belongs to run %q", wk.ID, wk.RunID)
		}
	}
}

func TestListWorkersEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body map[string]json.RawMessage
	if code := getJSON(t, ts.URL+"/v1/workers", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if string(body["workers"]) != "[]" {
		t.Errorf("workers = %s, want []", body["workers"])
	}
}

func TestGetWorker(t *testing.T) {
	srv := newTestServer(t)
	wk := createWorker(t, srv, "run", model.StatusBootstrapped, model.StatusRunning)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var got model.Worker
	if code := getJSON(t, ts.URL+"/v1/workers/"+wk.ID, &got); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got.ID != wk.ID || got.Status != model.StatusRunning {
		t.Errorf("got %+v, want running worker %s", got, wk.ID)
	}
	if got.StartedAt == nil {
		t.Error("started_at missing for a running worker")
	}
}

func TestGetWorkerNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body map[string]string
	if code := getJSON(t, ts.URL+"/v1/workers/nonexistent", &body); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	if body["error"] != "worker not found" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestListOps(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body struct {
		Ops []struct {
			Name string `json:"name"`
			Mode string `json:"mode"`
		} `json:"ops"`
	}
	if code := getJSON(t, ts.URL+"/v1/ops", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(body.Ops) != 8 {
		t.Fatalf("got %d ops, want 8", len(body.Ops))
	}
	modes := map[string]string{}
	for _, op := range body.Ops {
		modes[op.Name] = op.Mode
	}
	if modes["op_fetch"] != "async" || modes["op_bark"] != "sync" {
		t.Errorf("modes = %v", modes)
	}
}

func TestGetTasks(t *testing.T) {
	srv := newTestServer(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := srv.ledger.Register(id); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if _, _, err := srv.ledger.ClaimNext(); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body tasksResponse
	if code := getJSON(t, ts.URL+"/v1/tasks", &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(body.Assigned) != 1 || body.Assigned[0] != "a" {
		t.Errorf("assigned = %v, want [a]", body.Assigned)
	}
	if len(body.Registered) != 2 || body.Registered[0] != "b" || body.Registered[1] != "c" {
		t.Errorf("registered = %v, want [b c]", body.Registered)
	}
	if body.Poisoned {
		t.Error("poisoned = true")
	}
}
