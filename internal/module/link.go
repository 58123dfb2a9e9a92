package module

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	entrySpecifier  = "runjs:main"
	entryNamespace  = "runjs-entry"
	moduleNamespace = "runjs"
)

// Program is a linked module graph ready for evaluation. Evaluating Code
// yields a promise that settles when the main module (including any
// top-level await) has finished.
type Program struct {
	Main    *url.URL
	Code    string
	Modules []string
}

// Linker links a main module and everything it imports into one Program.
// Every resolution goes through Resolve and every load through the Loader.
type Linker struct {
	loader *Loader
}

// NewLinker creates a linker that loads modules through loader.
func NewLinker(loader *Loader) *Linker {
	return &Linker{loader: loader}
}

// linkState collects what the bundler plugin observed. esbuild invokes
// plugin callbacks from several goroutines.
type linkState struct {
	mu       sync.Mutex
	firstErr error
	modules  []string
}

func (s *linkState) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	return err
}

func (s *linkState) loaded(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = append(s.modules, location)
}

// Link builds the program for main. The first resolution, load or transform
// error is returned as-is so callers can match it with errors.Is.
func (k *Linker) Link(ctx context.Context, main *url.URL) (*Program, error) {
	state := &linkState{}

	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entrySpecifier},
		Bundle:      true,
		Write:       false,
		Outfile:     "runjs-main.js",
		Format:      api.FormatESModule,
		Platform:    api.PlatformNeutral,
		Target:      api.ES2017,
		Supported: map[string]bool{
			"top-level-await": true,
			"import-meta":     false,
		},
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{k.plugin(ctx, main, state)},
	})

	if len(result.Errors) > 0 {
		if state.firstErr != nil {
			return nil, state.firstErr
		}
		return nil, &LinkError{Messages: formatMessages(result.Errors)}
	}
	if len(result.OutputFiles) != 1 {
		return nil, &LinkError{Messages: []string{fmt.Sprintf("expected one output file, got %d", len(result.OutputFiles))}}
	}

	sort.Strings(state.modules)
	return &Program{
		Main:    main,
		Code:    wrapAsync(string(result.OutputFiles[0].Contents)),
		Modules: state.modules,
	}, nil
}

func (k *Linker) plugin(ctx context.Context, main *url.URL, state *linkState) api.Plugin {
	return api.Plugin{
		Name: "runjs-modules",
		Setup: func(build api.PluginBuild) {
			// The synthetic entry imports main for its side effects only, so the
			// bundle has no exports and can run as a plain script body.
			build.OnResolve(api.OnResolveOptions{Filter: `^runjs:main$`},
				func(api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: "main", Namespace: entryNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: entryNamespace},
				func(api.OnLoadArgs) (api.OnLoadResult, error) {
					contents := "import " + strconv.Quote(main.String()) + ";\n"
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})

			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					u, err := Resolve(args.Path, args.Importer)
					if err != nil {
						return api.OnResolveResult{}, state.fail(err)
					}
					return api.OnResolveResult{Path: u.String(), Namespace: moduleNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: moduleNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					u, err := url.Parse(args.Path)
					if err != nil {
						return api.OnLoadResult{}, state.fail(&ResolveError{Specifier: args.Path, Reason: err.Error()})
					}
					src, err := k.loader.Load(ctx, u)
					if err != nil {
						return api.OnLoadResult{}, state.fail(err)
					}
					state.loaded(u.String())

					contents := string(src.Code)
					loader := api.LoaderJS
					if src.Kind == KindJSON {
						loader = api.LoaderJSON
					}
					return api.OnLoadResult{Contents: &contents, Loader: loader}, nil
				})
		},
	}
}

// wrapAsync turns the linked module body into an expression whose value is
// the promise of the module's completion.
func wrapAsync(body string) string {
	return "(async () => {\n\"use strict\";\n" + body + "\n})()"
}
