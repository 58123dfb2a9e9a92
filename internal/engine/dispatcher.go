package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seantiz/runjs/internal/model"
	"github.com/seantiz/runjs/internal/module"
	"github.com/seantiz/runjs/internal/store"
	"github.com/seantiz/runjs/internal/tracing"
)

// Defaults applied by NewDispatcher to zero-valued Options fields.
const (
	DefaultMaxWorkers      = 4
	DefaultChannelCapacity = 64
)

// Options configures a Dispatcher. Factory and Store are required.
type Options struct {
	Factory         ExecutorFactory
	Store           store.Store
	Broker          *LogBroker
	Logger          *slog.Logger
	MaxWorkers      int
	ChannelCapacity int
	// Parallelism overrides the detected CPU count.
	Parallelism int
}

// Dispatcher runs one main module on a fixed set of workers and joins them.
type Dispatcher struct {
	factory     ExecutorFactory
	store       store.Store
	broker      *LogBroker
	logger      *slog.Logger
	maxWorkers  int
	capacity    int
	parallelism int
	runID       string
}

// NewDispatcher creates a dispatcher with a fresh run id.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		factory:     opts.Factory,
		store:       opts.Store,
		broker:      opts.Broker,
		logger:      opts.Logger,
		maxWorkers:  opts.MaxWorkers,
		capacity:    opts.ChannelCapacity,
		parallelism: opts.Parallelism,
		runID:       model.NewID(),
	}
	if d.broker == nil {
		d.broker = NewLogBroker()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.maxWorkers <= 0 {
		d.maxWorkers = DefaultMaxWorkers
	}
	if d.capacity <= 0 {
		d.capacity = DefaultChannelCapacity
	}
	if d.parallelism <= 0 {
		d.parallelism = runtime.NumCPU()
	}
	return d
}

// RunID identifies the worker records written by this dispatcher.
func (d *Dispatcher) RunID() string {
	return d.runID
}

// Broker returns the dispatcher's log broker for SSE subscription.
func (d *Dispatcher) Broker() *LogBroker {
	return d.broker
}

// WorkerCount is min(parallelism, limit), and never less than one.
func WorkerCount(parallelism, limit int) int {
	return max(1, min(parallelism, limit))
}

// Report is the per-worker outcome of a run, in spawn order.
type Report struct {
	RunID   string
	Results []Result
}

// Failed counts results with an error.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Run evaluates main on every worker and returns once all of them have been
// joined. Worker failures are reported in the Report; the returned error is
// reserved for failures that abort the whole process, such as a module of
// an unsupported kind.
func (d *Dispatcher) Run(ctx context.Context, main *url.URL) (*Report, error) {
	if d.factory == nil || d.store == nil {
		return nil, errors.New("dispatcher: factory and store are required")
	}

	n := WorkerCount(d.parallelism, d.maxWorkers)
	ctx, span := tracing.StartSpan(ctx, "dispatcher.run",
		attribute.String("run.id", d.runID),
		attribute.Int("run.workers", n),
	)
	d.logger.Info("starting workers", "run_id", d.runID, "workers", n, "main", main.String())

	report := &Report{RunID: d.runID, Results: make([]Result, n)}
	var workers, coordinators sync.WaitGroup

	for i := 0; i < n; i++ {
		id := model.NewID()
		d.createRecord(ctx, id, main)

		logger := d.logger.With("worker_id", id)
		w := &worker{
			spec: WorkerSpec{
				ID:     id,
				Main:   main,
				OnLine: d.lineSink(ctx, id),
				Logger: logger,
			},
			factory:   d.factory,
			commands:  make(chan Command, d.capacity),
			setStatus: func(status string) { d.updateStatus(ctx, id, status) },
			logger:    logger,
		}

		workers.Go(func() {
			w.run(ctx)
		})
		coordinators.Go(func() {
			report.Results[i] = d.coordinate(ctx, w)
		})
	}

	coordinators.Wait()
	workers.Wait()

	failed := report.Failed()
	d.logger.Info("workers joined", "run_id", d.runID, "workers", n, "failed", failed)

	err := fatalError(report)
	span.End(err)
	return report, err
}

// coordinate sends the single start command, forwards every response to the
// log sink, then closes the worker's command channel.
func (d *Dispatcher) coordinate(ctx context.Context, w *worker) Result {
	defer close(w.commands)
	defer d.broker.Close(w.spec.ID)

	reply := make(chan Result, d.capacity)
	w.commands <- StartCommand{Reply: reply}

	final := Result{WorkerID: w.spec.ID}
	for res := range reply {
		d.record(ctx, res)
		final = res
	}
	return final
}

// record logs a worker result and persists its terminal state.
func (d *Dispatcher) record(ctx context.Context, res Result) {
	status := model.StatusCompleted
	errMsg := ""
	if res.Err != nil {
		status = model.StatusFailed
		errMsg = res.Err.Error()
		d.logger.Error("worker error", "worker_id", res.WorkerID, "duration_ms", res.Duration.Milliseconds(), "error", res.Err)
	} else {
		d.logger.Info("worker finished", "worker_id", res.WorkerID, "duration_ms", res.Duration.Milliseconds())
	}

	workersTotal.WithLabelValues(status).Inc()
	workerDuration.Observe(res.Duration.Seconds())

	if err := d.store.FinishWorker(ctx, res.WorkerID, status, errMsg, int(res.Duration.Milliseconds())); err != nil {
		d.logger.Error("failed to record worker result", "worker_id", res.WorkerID, "error", err)
	}
}

func (d *Dispatcher) createRecord(ctx context.Context, id string, main *url.URL) {
	w := &model.Worker{
		ID:         id,
		RunID:      d.runID,
		Status:     model.StatusCreated,
		MainModule: main.String(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.CreateWorker(ctx, w); err != nil {
		d.logger.Error("failed to create worker record", "worker_id", id, "error", err)
	}
}

func (d *Dispatcher) updateStatus(ctx context.Context, id, status string) {
	if err := d.store.UpdateWorkerStatus(ctx, id, status); err != nil {
		d.logger.Error("failed to update worker status", "worker_id", id, "status", status, "error", err)
	}
}

// lineSink persists each console line for later viewing, then publishes it
// to the broker for live SSE subscribers.
func (d *Dispatcher) lineSink(ctx context.Context, workerID string) func(stream, line string) {
	var seq atomic.Int64
	return func(stream, line string) {
		l := model.LogLine{
			WorkerID:  workerID,
			Seq:       int(seq.Add(1) - 1),
			Stream:    stream,
			Line:      line,
			CreatedAt: time.Now().UTC(),
		}
		if err := d.store.InsertLogLine(ctx, l); err != nil {
			d.logger.Error("failed to persist log line", "worker_id", workerID, "seq", l.Seq, "error", err)
		}
		d.broker.Publish(l)
	}
}

// fatalError returns the first worker error that must fail the process.
func fatalError(report *Report) error {
	for _, res := range report.Results {
		if errors.Is(res.Err, module.ErrUnsupportedExtension) {
			return fmt.Errorf("worker %s: %w", res.WorkerID, res.Err)
		}
	}
	return nil
}
