// Package ops is the capability bridge: the fixed catalog of native
// operations a script can call, and the registry isolates dispatch through.
package ops

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/seantiz/runjs/internal/ledger"
)

// Op names as seen by scripts.
const (
	OpReadFile      = "op_read_file"
	OpWriteFile     = "op_write_file"
	OpRemoveFile    = "op_remove_file"
	OpFetch         = "op_fetch"
	OpSleep         = "op_sleep"
	OpRegisterTask  = "op_register_task"
	OpClaimNextTask = "op_claim_next_task"
	OpBark          = "op_bark"
)

// maxSleepMS keeps the delay representable as a time.Duration.
const maxSleepMS = float64(math.MaxInt64 / int64(time.Millisecond))

// Bridge holds the host resources the catalog's handlers act on.
type Bridge struct {
	ledger *ledger.Ledger
	fs     afs.Service
	client *http.Client
	out    io.Writer
}

// Options configures a Bridge. Ledger is required; the rest default to the
// real filesystem, http.DefaultClient and os.Stdout.
type Options struct {
	Ledger *ledger.Ledger
	FS     afs.Service
	Client *http.Client
	Out    io.Writer
}

// NewBridge creates a bridge over the given resources.
func NewBridge(opts Options) *Bridge {
	b := &Bridge{
		ledger: opts.Ledger,
		fs:     opts.FS,
		client: opts.Client,
		out:    opts.Out,
	}
	if b.fs == nil {
		b.fs = afs.New()
	}
	if b.client == nil {
		b.client = http.DefaultClient
	}
	if b.out == nil {
		b.out = os.Stdout
	}
	return b
}

// Registry returns a registry populated with the full catalog.
func (b *Bridge) Registry() *Registry {
	r := NewRegistry()
	r.Register(Op{Name: OpReadFile, Mode: ModeAsync, Handler: b.readFile})
	r.Register(Op{Name: OpWriteFile, Mode: ModeAsync, Handler: b.writeFile})
	r.Register(Op{Name: OpRemoveFile, Mode: ModeSync, Handler: b.removeFile})
	r.Register(Op{Name: OpFetch, Mode: ModeAsync, Handler: b.fetch})
	r.Register(Op{Name: OpSleep, Mode: ModeAsync, Handler: b.sleep})
	r.Register(Op{Name: OpRegisterTask, Mode: ModeSync, Handler: b.registerTask})
	r.Register(Op{Name: OpClaimNextTask, Mode: ModeSync, Handler: b.claimNextTask})
	r.Register(Op{Name: OpBark, Mode: ModeSync, Handler: b.bark})
	return r
}

func (b *Bridge) readFile(ctx context.Context, args Args) (any, error) {
	path, err := args.String(0)
	if err != nil {
		return nil, err
	}

	// afs does not report a missing file as fs.ErrNotExist, so check first
	// to give scripts a NotFound they can branch on.
	exists, err := b.fs.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !exists {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}

	data, err := b.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (b *Bridge) writeFile(ctx context.Context, args Args) (any, error) {
	path, err := args.String(0)
	if err != nil {
		return nil, err
	}
	contents, err := args.String(1)
	if err != nil {
		return nil, err
	}

	if err := b.fs.Upload(ctx, path, file.DefaultFileOsMode, strings.NewReader(contents)); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return nil, nil
}

func (b *Bridge) removeFile(_ context.Context, args Args) (any, error) {
	path, err := args.String(0)
	if err != nil {
		return nil, err
	}
	// os.Remove keeps this a single non-suspending syscall and fails on a
	// missing file, unlike afs.Delete.
	if err := os.Remove(path); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *Bridge) fetch(ctx context.Context, args Args) (any, error) {
	url, err := args.String(0)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fetchError(url, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fetchError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchError(url, err)
	}
	return string(body), nil
}

func (b *Bridge) sleep(_ context.Context, args Args) (any, error) {
	ms, err := args.Float(0)
	if err != nil {
		ms = 0
	}
	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}
	if ms > maxSleepMS {
		ms = maxSleepMS
	}

	// Not cancellable: a sleeping script finishes its delay even after the
	// run context is done.
	<-time.After(time.Duration(ms * float64(time.Millisecond)))
	return nil, nil
}

func (b *Bridge) registerTask(_ context.Context, args Args) (any, error) {
	id, err := args.String(0)
	if err != nil {
		return nil, err
	}
	return nil, b.ledger.Register(id)
}

func (b *Bridge) claimNextTask(_ context.Context, _ Args) (any, error) {
	id, ok, err := b.ledger.ClaimNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return id, nil
}

func (b *Bridge) bark(_ context.Context, _ Args) (any, error) {
	fmt.Fprintln(b.out, "woof")
	return nil, nil
}
