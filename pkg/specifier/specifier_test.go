package specifier

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		spec      string
		class     Class
		prefix    Prefix
		remainder string
	}{
		{"./x", Relative, PrefixNone, "./x"},
		{"/x", Relative, PrefixNone, "/x"},
		{"../lib/util.ts", Relative, PrefixNone, "../lib/util.ts"},
		{"https://x/y", URL, PrefixNone, "https://x/y"},
		{"data:text/javascript,export%20default%201", URL, PrefixNone, "data:text/javascript,export%20default%201"},
		{"lodash", Bare, PrefixNone, "lodash"},
		{"@scope/pkg/sub", Bare, PrefixNone, "@scope/pkg/sub"},
		{"react@18", Bare, PrefixNone, "react@18"},
		{"npm:lodash@4", Prefixed, PrefixNPM, "lodash@4"},
		{"node:fs", Prefixed, PrefixNode, "fs"},
	}

	for _, test := range tests {
		got := Classify(test.spec)
		if got.Class != test.class {
			t.Errorf("Classify(%q).Class = %s, expected %s", test.spec, got.Class, test.class)
		}
		if got.Prefix != test.prefix {
			t.Errorf("Classify(%q).Prefix = %q, expected %q", test.spec, got.Prefix, test.prefix)
		}
		if got.Remainder != test.remainder {
			t.Errorf("Classify(%q).Remainder = %q, expected %q", test.spec, got.Remainder, test.remainder)
		}
	}
}

func TestIsBare(t *testing.T) {
	if !IsBare("preact/hooks") {
		t.Error("Expected preact/hooks to be bare")
	}
	if IsBare("https://esm.sh/preact") {
		t.Error("Expected URL not to be bare")
	}
	if IsBare("./preact") {
		t.Error("Expected relative path not to be bare")
	}
}

func TestSplitPackage(t *testing.T) {
	tests := []struct {
		spec    string
		name    string
		subpath string
	}{
		{"lodash", "lodash", ""},
		{"lodash/fp", "lodash", "fp"},
		{"@scope/pkg", "@scope/pkg", ""},
		{"@scope/pkg/a/b.css", "@scope/pkg", "a/b.css"},
		{"normalize.css", "normalize.css", ""},
		{"bootstrap@5/dist/css/bootstrap.min.css", "bootstrap@5", "dist/css/bootstrap.min.css"},
	}

	for _, test := range tests {
		name, subpath := SplitPackage(test.spec)
		if name != test.name || subpath != test.subpath {
			t.Errorf("SplitPackage(%q) = (%q, %q), expected (%q, %q)", test.spec, name, subpath, test.name, test.subpath)
		}
	}
}
