package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seantiz/runjs/internal/model"
	"github.com/seantiz/runjs/internal/tracing"
)

// ErrWorkerPanic is reported as a worker's result when bootstrap or
// execution panicked.
var ErrWorkerPanic = errors.New("worker panicked")

// errAlreadyStarted is replied to a start command after the first.
var errAlreadyStarted = errors.New("worker already started")

// Command is a message sent to a worker. StartCommand is the only variant.
type Command interface {
	command()
}

// StartCommand tells a worker to evaluate its main module. The worker sends
// exactly one Result on Reply and then closes it.
type StartCommand struct {
	Reply chan<- Result
}

func (StartCommand) command() {}

// Result is the outcome of one worker. A nil Err is success.
type Result struct {
	WorkerID string
	Err      error
	Duration time.Duration
}

// Executor evaluates one main module to completion.
type Executor interface {
	Execute(ctx context.Context) error
}

// WorkerSpec describes the executor a factory should build.
type WorkerSpec struct {
	ID     string
	Main   *url.URL
	OnLine func(stream, line string)
	Logger *slog.Logger
}

// ExecutorFactory builds a worker's executor. It is called on the worker's
// own goroutine, after that goroutine is locked to its OS thread.
type ExecutorFactory func(spec WorkerSpec) (Executor, error)

// worker owns one executor on one locked OS thread.
type worker struct {
	spec      WorkerSpec
	factory   ExecutorFactory
	commands  chan Command
	setStatus func(status string)
	logger    *slog.Logger
}

// run bootstraps the executor and serves commands until the command channel
// is closed.
func (w *worker) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	workersActive.Inc()
	defer workersActive.Dec()

	var exec Executor
	bootErr := w.safely(func() error {
		var err error
		exec, err = w.factory(w.spec)
		return err
	})
	if bootErr == nil {
		w.setStatus(model.StatusBootstrapped)
	} else {
		bootErr = fmt.Errorf("bootstrap: %w", bootErr)
	}

	started := false
	for cmd := range w.commands {
		switch c := cmd.(type) {
		case StartCommand:
			var res Result
			switch {
			case started:
				res = Result{WorkerID: w.spec.ID, Err: errAlreadyStarted}
			case bootErr != nil:
				res = Result{WorkerID: w.spec.ID, Err: bootErr}
			default:
				res = w.execute(ctx, exec)
			}
			started = true
			c.Reply <- res
			close(c.Reply)
		}
	}
}

func (w *worker) execute(ctx context.Context, exec Executor) Result {
	w.setStatus(model.StatusRunning)

	ctx, span := tracing.StartSpan(ctx, "worker.execute",
		attribute.String("worker.id", w.spec.ID),
		attribute.String("worker.main", w.spec.Main.String()),
	)
	start := time.Now()
	err := w.safely(func() error {
		return exec.Execute(ctx)
	})
	span.End(err)

	return Result{WorkerID: w.spec.ID, Err: err, Duration: time.Since(start)}
}

// safely runs fn and converts a panic into ErrWorkerPanic.
func (w *worker) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()
	return fn()
}
