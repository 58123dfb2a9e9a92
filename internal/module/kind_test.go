package module

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path  string
		media MediaType
		kind  Kind
	}{
		{"/src/main.js", MediaJavaScript, KindScript},
		{"/src/main.mjs", MediaMjs, KindScript},
		{"/src/main.cjs", MediaCjs, KindScript},
		{"/src/view.jsx", MediaJsx, KindTranspile},
		{"/src/main.ts", MediaTypeScript, KindTranspile},
		{"/src/main.mts", MediaMts, KindTranspile},
		{"/src/main.cts", MediaCts, KindTranspile},
		{"/src/view.tsx", MediaTsx, KindTranspile},
		{"/src/types.d.ts", MediaDts, KindTranspile},
		{"/src/types.d.mts", MediaDmts, KindTranspile},
		{"/src/types.d.cts", MediaDcts, KindTranspile},
		{"/src/data.json", MediaJSON, KindJSON},
		{"/src/MAIN.TS", MediaTypeScript, KindTranspile},
		{"/src/style.css", MediaUnknown, KindUnknown},
		{"/src/main.py", MediaUnknown, KindUnknown},
		{"/src/Makefile", MediaUnknown, KindUnknown},
		{"/src/archive.tar.gz", MediaUnknown, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := MediaTypeFromPath(tt.path); got != tt.media {
				t.Errorf("MediaTypeFromPath(%q) = %v, want %v", tt.path, got, tt.media)
			}
			if got := Classify(tt.path); got != tt.kind {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.kind)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindScript:    "script",
		KindTranspile: "transpile",
		KindJSON:      "json",
		KindUnknown:   "unknown",
		Kind(42):      "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
