// Command runjs evaluates a JavaScript or TypeScript module on a pool of
// isolated workers.
//
//	runjs <file>
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/afs"

	"github.com/seantiz/runjs/internal/api"
	"github.com/seantiz/runjs/internal/config"
	"github.com/seantiz/runjs/internal/engine"
	"github.com/seantiz/runjs/internal/ledger"
	"github.com/seantiz/runjs/internal/module"
	"github.com/seantiz/runjs/internal/ops"
	"github.com/seantiz/runjs/internal/store"
	"github.com/seantiz/runjs/internal/tracing"
)

const (
	serviceName    = "runjs"
	serviceVersion = "0.1.0"

	traceFlushTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit, returning the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: runjs <file>")
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logger := config.NewLogger(stderr, cfg.LogLevel)

	if err := execute(ctx, cfg, logger, args[0], stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg config.Config, logger *slog.Logger, path string, stdout, stderr io.Writer) error {
	if cfg.TraceFile != "" {
		if err := tracing.Init(serviceName, serviceVersion, cfg.TraceFile); err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
			defer cancel()
			if err := tracing.Shutdown(flushCtx); err != nil {
				logger.Error("flush traces", "error", err)
			}
		}()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	entry, err := module.ResolvePath(path, cwd)
	if err != nil {
		return err
	}

	logger.Debug("runjs: starting",
		"main", entry.String(),
		"max_workers", cfg.MaxWorkers,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tasks := ledger.New()
	registry := ops.NewBridge(ops.Options{Ledger: tasks, Out: stdout}).Registry()
	linker := module.NewLinker(module.NewLoader(afs.New()))

	dispatcher := engine.NewDispatcher(engine.Options{
		Factory:         engine.IsolateFactory(linker, registry, stdout, stderr),
		Store:           db,
		Logger:          logger,
		MaxWorkers:      cfg.MaxWorkers,
		ChannelCapacity: cfg.ChannelCapacity,
	})

	if cfg.DiagAddr != "" {
		srv := api.NewServer(api.Options{
			Addr:     cfg.DiagAddr,
			Store:    db,
			Broker:   dispatcher.Broker(),
			Registry: registry,
			Ledger:   tasks,
			RunID:    dispatcher.RunID(),
			Logger:   logger,
		})
		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Run(srvCtx); err != nil {
				logger.Error("diagnostics server", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	report, err := dispatcher.Run(ctx, entry)
	if err != nil {
		return err
	}
	logger.Debug("runjs: finished", "run_id", report.RunID, "failed", report.Failed())
	return nil
}
