package model

import "time"

// Worker status constants.
const (
	StatusCreated      = "created"
	StatusBootstrapped = "bootstrapped"
	StatusRunning      = "running"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

// Task state constants.
const (
	TaskRegistered = "registered"
	TaskAssigned   = "assigned"
)

// Console stream constants.
const (
	StreamOut = "out"
	StreamErr = "err"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusCreated: {
		StatusBootstrapped: true,
		StatusFailed:       true,
	},
	StatusBootstrapped: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status is a finished state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// LogLine represents a single console line emitted by a worker's script.
type LogLine struct {
	ID        int64     `json:"id"`
	WorkerID  string    `json:"worker_id"`
	Seq       int       `json:"seq"`
	Stream    string    `json:"stream"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Worker is the record of one worker unit within a dispatcher run.
type Worker struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	MainModule string     `json:"main_module"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
