// Package ledger implements the process-wide task ledger shared by every
// worker. Task ids move from registered to assigned exactly once and are
// handed out smallest-first.
package ledger

import (
	"errors"
	"slices"
	"sync"

	"github.com/seantiz/runjs/internal/model"
)

// ErrPoisoned is returned once a panic has escaped a critical section. The
// ledger's sets may be inconsistent at that point, so it refuses further work.
var ErrPoisoned = errors.New("task ledger lock poisoned")

// Snapshot is a point-in-time copy of the ledger's two sets.
type Snapshot struct {
	Registered []string `json:"registered"`
	Assigned   []string `json:"assigned"`
	Poisoned   bool     `json:"poisoned"`
}

// Ledger is a concurrency-safe registry of task ids. Construct it once with
// New and share the pointer; the zero value is not usable.
type Ledger struct {
	mu         sync.Mutex
	registered []string // sorted ascending
	assigned   []string // sorted ascending
	poisoned   bool
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Register adds id to the registered set unless it is already registered or
// assigned, in which case it does nothing.
func (l *Ledger) Register(id string) error {
	return l.critical(func() {
		if contains(l.assigned, id) {
			return
		}
		if pos, found := slices.BinarySearch(l.registered, id); !found {
			l.registered = slices.Insert(l.registered, pos, id)
		}
	})
}

// ClaimNext moves the smallest registered id to the assigned set and returns
// it. ok is false when nothing is registered.
func (l *Ledger) ClaimNext() (id string, ok bool, err error) {
	err = l.critical(func() {
		if len(l.registered) == 0 {
			return
		}
		id, ok = l.registered[0], true
		l.registered = slices.Delete(l.registered, 0, 1)
		pos, _ := slices.BinarySearch(l.assigned, id)
		l.assigned = slices.Insert(l.assigned, pos, id)
	})
	if err != nil {
		return "", false, err
	}

	if ok {
		claimsTotal.WithLabelValues(claimResultClaimed).Inc()
	} else {
		claimsTotal.WithLabelValues(claimResultEmpty).Inc()
	}
	return id, ok, nil
}

// Snapshot returns copies of both sets.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Registered: slices.Clone(l.registered),
		Assigned:   slices.Clone(l.assigned),
		Poisoned:   l.poisoned,
	}
}

// critical runs fn with the lock held. A panic inside fn poisons the ledger
// before the lock is released and then continues unwinding.
func (l *Ledger) critical(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.poisoned {
		return ErrPoisoned
	}

	done := false
	defer func() {
		if !done {
			l.poisoned = true
		}
	}()
	fn()
	done = true

	tasksGauge.WithLabelValues(model.TaskRegistered).Set(float64(len(l.registered)))
	tasksGauge.WithLabelValues(model.TaskAssigned).Set(float64(len(l.assigned)))
	return nil
}

func contains(sorted []string, id string) bool {
	_, found := slices.BinarySearch(sorted, id)
	return found
}
