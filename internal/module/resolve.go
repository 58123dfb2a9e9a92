package module

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Resolve resolves an import specifier against the URL of the importing
// module. Absolute URLs are returned as-is; "/", "./" and "../" specifiers are
// joined with the referrer. Bare specifiers are rejected.
func Resolve(specifier, referrer string) (*url.URL, error) {
	if specifier == "" {
		return nil, &ResolveError{Specifier: specifier, Referrer: referrer, Reason: "empty specifier"}
	}

	if u, err := url.Parse(specifier); err == nil && u.IsAbs() {
		return u, nil
	}

	if !isRelative(specifier) {
		return nil, &ResolveError{
			Specifier: specifier,
			Referrer:  referrer,
			Reason:    `relative import path not prefixed with "/", "./" or "../"`,
		}
	}

	base, err := url.Parse(referrer)
	if err != nil || !base.IsAbs() {
		return nil, &ResolveError{Specifier: specifier, Referrer: referrer, Reason: "invalid referrer URL"}
	}

	ref, err := url.Parse(specifier)
	if err != nil {
		return nil, &ResolveError{Specifier: specifier, Referrer: referrer, Reason: err.Error()}
	}

	return base.ResolveReference(ref), nil
}

// ResolvePath turns a command-line path into a file URL. Relative paths are
// taken relative to cwd.
func ResolvePath(p, cwd string) (*url.URL, error) {
	if p == "" {
		return nil, &ResolveError{Specifier: p, Reason: "empty path"}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(p))}, nil
}

// FilePath returns the local path of a file URL.
func FilePath(u *url.URL) (string, error) {
	if u.Scheme != "file" {
		return "", ErrUnsupportedScheme
	}
	return filepath.FromSlash(u.Path), nil
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "/") ||
		strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../")
}
