package store

import (
	"context"
	"errors"

	"github.com/seantiz/runjs/internal/model"
)

// ErrInvalidTransition is returned when a worker status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// WorkerStats holds aggregate statistics over recorded workers.
type WorkerStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for worker records and their
// console output.
type Store interface {
	CreateWorker(ctx context.Context, w *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	ListWorkers(ctx context.Context, runID string) ([]*model.Worker, error)
	UpdateWorkerStatus(ctx context.Context, id, status string) error
	FinishWorker(ctx context.Context, id, status, errMsg string, durationMS int) error
	GetWorkerStats(ctx context.Context) (*WorkerStats, error)
	InsertLogLine(ctx context.Context, line model.LogLine) error
	GetLogLines(ctx context.Context, workerID string) ([]model.LogLine, error)
	Close() error
}
