package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seantiz/runjs/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var stats statsResponse
	if code := getJSON(t, ts.URL+"/v1/stats", &stats); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for i := range 3 {
		wk := createWorker(t, srv, "run", model.StatusBootstrapped, model.StatusRunning)
		status := model.StatusCompleted
		if i == 2 {
			status = model.StatusFailed
		}
		if err := srv.store.FinishWorker(ctx, wk.ID, status, "", 100*(i+1)); err != nil {
			t.Fatalf("FinishWorker: %v", err)
		}
	}
	createWorker(t, srv, "run")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var stats statsResponse
	if code := getJSON(t, ts.URL+"/v1/stats", &stats); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed = %d, want 2", stats.ByStatus[model.StatusCompleted])
	}
	if stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("failed = %d, want 1", stats.ByStatus[model.StatusFailed])
	}
	if stats.ByStatus[model.StatusCreated] != 1 {
		t.Errorf("created = %d, want 1", stats.ByStatus[model.StatusCreated])
	}
	if stats.AvgDurationMS != 200 {
		t.Errorf("avg_duration_ms = %f, want 200", stats.AvgDurationMS)
	}
}
