package module

import (
	"path"
	"strings"
)

// Kind is how a loaded module is handled. The set is closed: anything that
// is not a script, a transpile target or JSON data is KindUnknown, which
// aborts the load.
type Kind int

const (
	KindUnknown Kind = iota
	KindScript
	KindTranspile
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindTranspile:
		return "transpile"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// MediaType is the source grammar implied by a file extension.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaJavaScript
	MediaMjs
	MediaCjs
	MediaJsx
	MediaTypeScript
	MediaMts
	MediaCts
	MediaDts
	MediaDmts
	MediaDcts
	MediaTsx
	MediaJSON
)

var mediaNames = map[MediaType]string{
	MediaUnknown:    "Unknown",
	MediaJavaScript: "JavaScript",
	MediaMjs:        "Mjs",
	MediaCjs:        "Cjs",
	MediaJsx:        "Jsx",
	MediaTypeScript: "TypeScript",
	MediaMts:        "Mts",
	MediaCts:        "Cts",
	MediaDts:        "Dts",
	MediaDmts:       "Dmts",
	MediaDcts:       "Dcts",
	MediaTsx:        "Tsx",
	MediaJSON:       "Json",
}

func (m MediaType) String() string {
	return mediaNames[m]
}

// declarationSuffixes are checked before plain extensions so that foo.d.ts is
// a declaration file rather than TypeScript.
var declarationSuffixes = []struct {
	suffix string
	media  MediaType
}{
	{".d.ts", MediaDts},
	{".d.mts", MediaDmts},
	{".d.cts", MediaDcts},
}

var extensionMedia = map[string]MediaType{
	".js":   MediaJavaScript,
	".mjs":  MediaMjs,
	".cjs":  MediaCjs,
	".jsx":  MediaJsx,
	".ts":   MediaTypeScript,
	".mts":  MediaMts,
	".cts":  MediaCts,
	".tsx":  MediaTsx,
	".json": MediaJSON,
}

// MediaTypeFromPath classifies a slash-separated path (or URL path) by its
// extension. Matching is case-insensitive.
func MediaTypeFromPath(p string) MediaType {
	base := strings.ToLower(path.Base(p))
	for _, d := range declarationSuffixes {
		if strings.HasSuffix(base, d.suffix) {
			return d.media
		}
	}
	if m, ok := extensionMedia[path.Ext(base)]; ok {
		return m
	}
	return MediaUnknown
}

// Kind reports how modules of this media type are loaded.
func (m MediaType) Kind() Kind {
	switch m {
	case MediaJavaScript, MediaMjs, MediaCjs:
		return KindScript
	case MediaJsx, MediaTypeScript, MediaMts, MediaCts, MediaDts, MediaDmts, MediaDcts, MediaTsx:
		return KindTranspile
	case MediaJSON:
		return KindJSON
	default:
		return KindUnknown
	}
}

// Classify returns the module kind for a path.
func Classify(p string) Kind {
	return MediaTypeFromPath(p).Kind()
}
