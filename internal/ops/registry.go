package ops

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seantiz/runjs/internal/tracing"
)

// Mode distinguishes fast-path operations from ones that suspend the caller.
type Mode int

const (
	// ModeSync operations run on the calling isolate's goroutine and must not
	// block for an unbounded time.
	ModeSync Mode = iota
	// ModeAsync operations run off the isolate's goroutine; the script gets a
	// promise that settles when the handler returns.
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

// MarshalText lets Mode appear by name in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Handler implements one operation. The returned value must be a string,
// a float64, nil, or another value the script engine can convert.
type Handler func(ctx context.Context, args Args) (any, error)

// Op is one entry of the capability catalog.
type Op struct {
	Name    string
	Mode    Mode
	Handler Handler
}

// Info describes an op for listing.
type Info struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`
}

// Registry holds the operations reachable from scripts. Lookups are by name.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Op
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ops: make(map[string]Op),
	}
}

// Register adds op, replacing any op with the same name. The handler is
// wrapped so every call is traced and counted.
func (r *Registry) Register(op Op) {
	op.Handler = instrument(op.Name, op.Handler)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name] = op
}

// Lookup returns the op registered under name.
func (r *Registry) Lookup(name string) (Op, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[name]
	if !ok {
		return Op{}, fmt.Errorf("%w: %q", ErrUnknownOp, name)
	}
	return op, nil
}

// List returns every registered op sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.ops))
	for _, op := range r.ops {
		infos = append(infos, Info{Name: op.Name, Mode: op.Mode})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func instrument(name string, h Handler) Handler {
	return func(ctx context.Context, args Args) (any, error) {
		ctx, span := tracing.StartSpan(ctx, name, attribute.Int("op.args", len(args)))
		start := time.Now()

		v, err := h(ctx, args)

		opDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		result := resultOK
		if err != nil {
			result = resultError
		}
		opCallsTotal.WithLabelValues(name, result).Inc()
		span.End(err)
		return v, err
	}
}
