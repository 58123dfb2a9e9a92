package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	// ErrResolve is wrapped by every specifier resolution failure.
	ErrResolve = errors.New("module resolution failed")

	// ErrUnsupportedExtension marks a module whose extension is not in the
	// classification table. Callers treat it as fatal.
	ErrUnsupportedExtension = errors.New("unsupported module extension")

	// ErrUnsupportedScheme is returned when loading a non-file URL.
	ErrUnsupportedScheme = errors.New("unsupported module scheme")

	// ErrTransform is wrapped by parse and emit failures.
	ErrTransform = errors.New("module transform failed")
)

// ResolveError describes a specifier that could not be resolved.
type ResolveError struct {
	Specifier string
	Referrer  string
	Reason    string
}

func (e *ResolveError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("resolve %q: %s", e.Specifier, e.Reason)
	}
	return fmt.Sprintf("resolve %q from %q: %s", e.Specifier, e.Referrer, e.Reason)
}

func (e *ResolveError) Unwrap() error { return ErrResolve }

// UnsupportedExtensionError names the offending module.
type UnsupportedExtensionError struct {
	Location string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("unknown extension for module %s", e.Location)
}

func (e *UnsupportedExtensionError) Unwrap() error { return ErrUnsupportedExtension }

// TransformError carries the diagnostics of a failed parse-then-emit pass.
type TransformError struct {
	Location string
	Messages []string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.Location, strings.Join(e.Messages, "; "))
}

func (e *TransformError) Unwrap() error { return ErrTransform }

// LinkError is returned when the module graph fails to link for a reason
// that did not originate in resolution or loading.
type LinkError struct {
	Messages []string
}

func (e *LinkError) Error() string {
	return "link module graph: " + strings.Join(e.Messages, "; ")
}

func formatMessages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location == nil {
			out = append(out, m.Text)
			continue
		}
		out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
	}
	return out
}
