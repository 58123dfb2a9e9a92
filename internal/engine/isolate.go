package engine

import (
	"io"

	"github.com/seantiz/runjs/internal/isolate"
	"github.com/seantiz/runjs/internal/module"
	"github.com/seantiz/runjs/internal/ops"
)

// IsolateFactory returns an ExecutorFactory that gives every worker its own
// isolate. All isolates share linker, registry and the output writers.
func IsolateFactory(linker *module.Linker, registry *ops.Registry, stdout, stderr io.Writer) ExecutorFactory {
	return func(spec WorkerSpec) (Executor, error) {
		iso, err := isolate.New(isolate.Options{
			WorkerID: spec.ID,
			Main:     spec.Main,
			Linker:   linker,
			Registry: registry,
			Stdout:   stdout,
			Stderr:   stderr,
			OnLine:   spec.OnLine,
			Logger:   spec.Logger,
		})
		if err != nil {
			return nil, err
		}
		return iso, nil
	}
}
