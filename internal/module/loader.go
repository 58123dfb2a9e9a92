// Package module resolves import specifiers, loads and classifies module
// source, transpiles typed syntax, and links a module graph into a single
// program an isolate can evaluate.
package module

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/viant/afs"
)

// Source is the result of loading one module.
type Source struct {
	Location *url.URL
	Media    MediaType
	Kind     Kind
	Code     []byte
}

// Loader reads module source and turns it into something the linker can
// consume. It keeps no cache: every Load reads and transforms again.
type Loader struct {
	fs afs.Service
}

// NewLoader creates a loader reading through fs.
func NewLoader(fs afs.Service) *Loader {
	return &Loader{fs: fs}
}

// Load reads the module at location and prepares its code by kind:
// scripts pass through, typed/JSX sources are transpiled, JSON is validated
// as data. An unrecognized extension fails with ErrUnsupportedExtension
// before anything is read.
func (l *Loader) Load(ctx context.Context, location *url.URL) (*Source, error) {
	src, err := l.load(ctx, location)
	kind := Classify(location.Path)
	if err != nil {
		loadsTotal.WithLabelValues(kind.String(), resultError).Inc()
		return nil, err
	}
	loadsTotal.WithLabelValues(kind.String(), resultOK).Inc()
	return src, nil
}

func (l *Loader) load(ctx context.Context, location *url.URL) (*Source, error) {
	media := MediaTypeFromPath(location.Path)
	kind := media.Kind()
	if kind == KindUnknown {
		return nil, &UnsupportedExtensionError{Location: location.String()}
	}
	path, err := FilePath(location)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", location, err)
	}

	code, err := l.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", location, err)
	}

	switch kind {
	case KindTranspile:
		code, err = Transpile(location.String(), media, code)
		if err != nil {
			return nil, err
		}
	case KindJSON:
		if !json.Valid(code) {
			return nil, &TransformError{Location: location.String(), Messages: []string{"invalid JSON"}}
		}
	}

	return &Source{Location: location, Media: media, Kind: kind, Code: code}, nil
}

// Transpile parses code under the grammar of media and emits plain
// JavaScript with types erased and JSX lowered. Import and export statements
// are preserved for the linker.
func Transpile(name string, media MediaType, code []byte) ([]byte, error) {
	loader, ok := transpileLoaders[media]
	if !ok {
		return nil, &TransformError{Location: name, Messages: []string{fmt.Sprintf("%s is not a transpiled media type", media)}}
	}

	result := api.Transform(string(code), api.TransformOptions{
		Loader:     loader,
		Sourcefile: name,
		Target:     api.ESNext,
		JSX:        api.JSXTransform,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, &TransformError{Location: name, Messages: formatMessages(result.Errors)}
	}
	return result.Code, nil
}

var transpileLoaders = map[MediaType]api.Loader{
	MediaJsx:        api.LoaderJSX,
	MediaTypeScript: api.LoaderTS,
	MediaMts:        api.LoaderTS,
	MediaCts:        api.LoaderTS,
	MediaDts:        api.LoaderTS,
	MediaDmts:       api.LoaderTS,
	MediaDcts:       api.LoaderTS,
	MediaTsx:        api.LoaderTSX,
}
