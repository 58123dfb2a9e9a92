// Package isolate runs one linked module graph inside a single goja runtime
// driven by an explicit event loop. An Isolate is owned by exactly one
// goroutine; nothing in it is safe for concurrent use.
package isolate

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/dop251/goja"

	"github.com/seantiz/runjs/internal/model"
	"github.com/seantiz/runjs/internal/module"
	"github.com/seantiz/runjs/internal/ops"
)

//go:embed runtime.js
var prelude string

// ErrUnsettled is returned when the loop runs dry while the main module's
// completion promise is still pending.
var ErrUnsettled = errors.New("module evaluation never settled")

// ScriptError is an uncaught exception or unhandled rejection raised by
// script code.
type ScriptError struct {
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	if e.Stack != "" && !strings.HasPrefix(e.Stack, e.Message) {
		return e.Message + "\n" + e.Stack
	}
	if e.Stack != "" {
		return e.Stack
	}
	return e.Message
}

// LineSink receives each console line (without its trailing newline) along
// with the stream it was written to.
type LineSink func(stream, line string)

// Options configures an Isolate.
type Options struct {
	WorkerID string
	Main     *url.URL
	Linker   *module.Linker
	Registry *ops.Registry
	Stdout   io.Writer
	Stderr   io.Writer
	OnLine   LineSink
	Logger   *slog.Logger
}

// Isolate is one execution context bound to one main module.
type Isolate struct {
	vm       *goja.Runtime
	loop     *eventLoop
	main     *url.URL
	linker   *module.Linker
	registry *ops.Registry
	stdout   io.Writer
	stderr   io.Writer
	onLine   LineSink
	logger   *slog.Logger

	// ctx is the context of the running Execute; op handlers inherit it.
	ctx context.Context

	// unhandled holds rejected promises without a handler, in rejection order.
	unhandled []*goja.Promise
}

// New creates an isolate with the prelude installed and WORKER_ID defined.
// The main module is not loaded until Execute.
func New(opts Options) (*Isolate, error) {
	if opts.Main == nil {
		return nil, errors.New("isolate: main module is required")
	}
	if opts.Linker == nil || opts.Registry == nil {
		return nil, errors.New("isolate: linker and registry are required")
	}

	iso := &Isolate{
		vm:       goja.New(),
		loop:     newEventLoop(),
		main:     opts.Main,
		linker:   opts.Linker,
		registry: opts.Registry,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		onLine:   opts.OnLine,
		logger:   opts.Logger,
		ctx:      context.Background(),
	}
	if iso.logger == nil {
		iso.logger = slog.Default()
	}
	if iso.stdout == nil {
		iso.stdout = os.Stdout
	}
	if iso.stderr == nil {
		iso.stderr = os.Stderr
	}

	iso.vm.SetPromiseRejectionTracker(iso.trackRejection)

	if err := iso.installPrelude(); err != nil {
		return nil, err
	}
	if err := iso.vm.Set("WORKER_ID", opts.WorkerID); err != nil {
		return nil, fmt.Errorf("define WORKER_ID: %w", err)
	}
	return iso, nil
}

func (iso *Isolate) installPrelude() error {
	core := iso.vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"opSync":  iso.opSync,
		"opAsync": iso.opAsync,
		"print":   iso.print,
	} {
		if err := core.Set(name, fn); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}

	v, err := iso.vm.RunScript("runjs:runtime.js", prelude)
	if err != nil {
		return fmt.Errorf("load prelude: %w", err)
	}
	setup, ok := goja.AssertFunction(v)
	if !ok {
		return errors.New("load prelude: not a function")
	}
	if _, err := setup(goja.Undefined(), iso.vm.GlobalObject(), core); err != nil {
		return fmt.Errorf("run prelude: %w", err)
	}
	return nil
}

// Execute links and evaluates the main module, then runs the event loop
// until no async work is left.
func (iso *Isolate) Execute(ctx context.Context) error {
	iso.ctx = ctx

	prog, err := iso.linker.Link(ctx, iso.main)
	if err != nil {
		return err
	}

	compiled, err := goja.Compile(prog.Main.String(), prog.Code, true)
	if err != nil {
		return fmt.Errorf("compile %s: %w", prog.Main, err)
	}

	v, err := iso.vm.RunProgram(compiled)
	if err != nil {
		return iso.exceptionError(err)
	}
	done, ok := v.Export().(*goja.Promise)
	if !ok {
		return fmt.Errorf("evaluate %s: module did not produce a promise", prog.Main)
	}

	if err := iso.checkpoint(); err != nil {
		iso.loop.abandon()
		return err
	}
	if err := iso.loop.drain(iso.checkpoint); err != nil {
		return err
	}

	switch done.State() {
	case goja.PromiseStateRejected:
		return iso.scriptError(done.Result())
	case goja.PromiseStatePending:
		return ErrUnsettled
	}
	return nil
}

func (iso *Isolate) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		iso.unhandled = append(iso.unhandled, p)
	case goja.PromiseRejectionHandle:
		for i, q := range iso.unhandled {
			if q == p {
				iso.unhandled = append(iso.unhandled[:i], iso.unhandled[i+1:]...)
				break
			}
		}
	}
}

// checkpoint fails on the first rejection that is still unhandled once the
// microtask queue has drained.
func (iso *Isolate) checkpoint() error {
	if len(iso.unhandled) == 0 {
		return nil
	}
	p := iso.unhandled[0]
	iso.unhandled = iso.unhandled[1:]
	return iso.scriptError(p.Result())
}

func (iso *Isolate) opSync(call goja.FunctionCall) goja.Value {
	op := iso.lookup(call.Argument(0).String(), ops.ModeSync)
	v, err := op.Handler(iso.ctx, exportArgs(call.Arguments))
	if err != nil {
		panic(iso.jsError(err))
	}
	return iso.vm.ToValue(v)
}

func (iso *Isolate) opAsync(call goja.FunctionCall) goja.Value {
	op := iso.lookup(call.Argument(0).String(), ops.ModeAsync)
	args := exportArgs(call.Arguments)
	promise, resolve, reject := iso.vm.NewPromise()
	ctx := iso.ctx

	iso.loop.spawn(func() completion {
		v, err := op.Handler(ctx, args)
		return func() {
			if err != nil {
				reject(iso.jsError(err))
				return
			}
			resolve(iso.vm.ToValue(v))
		}
	})
	return iso.vm.ToValue(promise)
}

// lookup finds an op or throws a TypeError into the calling script.
func (iso *Isolate) lookup(name string, mode ops.Mode) ops.Op {
	op, err := iso.registry.Lookup(name)
	if err != nil {
		panic(iso.jsError(err))
	}
	if op.Mode != mode {
		panic(iso.vm.NewTypeError("op %s is %s and cannot be called as %s", name, op.Mode, mode))
	}
	return op
}

func (iso *Isolate) print(call goja.FunctionCall) goja.Value {
	msg := call.Argument(0).String()
	stream, w := model.StreamOut, iso.stdout
	if call.Argument(1).ToBoolean() {
		stream, w = model.StreamErr, iso.stderr
	}
	if _, err := io.WriteString(w, msg); err != nil {
		iso.logger.Warn("write console output", "stream", stream, "error", err)
	}
	if iso.onLine != nil {
		iso.onLine(stream, strings.TrimSuffix(msg, "\n"))
	}
	return goja.Undefined()
}

// jsError builds the Error thrown into the script for an op failure. Its
// name carries the error class.
func (iso *Isolate) jsError(err error) *goja.Object {
	class := ops.ErrorClass(err)
	ctorName := "Error"
	if class == ops.ClassTypeError {
		ctorName = "TypeError"
	}
	obj, cerr := iso.vm.New(iso.vm.Get(ctorName), iso.vm.ToValue(err.Error()))
	if cerr != nil {
		return iso.vm.NewGoError(err)
	}
	obj.Set("name", class)
	return obj
}

func (iso *Isolate) exceptionError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return iso.scriptError(ex.Value())
	}
	return err
}

func (iso *Isolate) scriptError(v goja.Value) error {
	se := &ScriptError{Message: "undefined"}
	if v == nil {
		return se
	}
	se.Message = v.String()
	if obj, ok := v.(*goja.Object); ok {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) && !goja.IsNull(stack) {
			se.Stack = stack.String()
		}
	}
	return se
}

// exportArgs converts the op arguments that follow the op name.
func exportArgs(values []goja.Value) ops.Args {
	if len(values) <= 1 {
		return nil
	}
	args := make(ops.Args, len(values)-1)
	for i, v := range values[1:] {
		args[i] = v.Export()
	}
	return args
}
