// Package specifier classifies import specifiers as they appear in module source.
package specifier

import (
	"net/url"
	"strings"
)

// Class is the category of a specifier
type Class int

const (
	Bare     Class = iota // lodash, @scope/pkg/sub
	Relative              // ./x, ../x, /x
	URL                   // https://x/y, data:..., blob:...
	Prefixed              // npm:lodash@4, node:fs
)

func (c Class) String() string {
	switch c {
	case Bare:
		return "bare"
	case Relative:
		return "relative"
	case URL:
		return "url"
	case Prefixed:
		return "prefixed"
	default:
		return "invalid"
	}
}

// Prefix identifies a recognized protocol token
type Prefix string

const (
	PrefixNone Prefix = ""
	PrefixNPM  Prefix = "npm:"  // package-manager style prefix
	PrefixNode Prefix = "node:" // host-runtime library prefix
)

var knownPrefixes = []Prefix{PrefixNPM, PrefixNode}

// Classification is the result of Classify
type Classification struct {
	Class     Class
	Prefix    Prefix // Set when Class == Prefixed
	Remainder string // Specifier with the prefix removed (the full specifier otherwise)
}

// Classify categorizes a specifier. It never fails.
func Classify(spec string) Classification {
	if IsRelative(spec) {
		return Classification{Class: Relative, Remainder: spec}
	}
	for _, p := range knownPrefixes {
		if strings.HasPrefix(spec, string(p)) {
			return Classification{Class: Prefixed, Prefix: p, Remainder: spec[len(p):]}
		}
	}
	if IsURL(spec) {
		return Classification{Class: URL, Remainder: spec}
	}
	return Classification{Class: Bare, Remainder: spec}
}

// IsRelative reports whether spec is a relative or absolute path. Both forms
// are resolved against the requesting module's URL.
func IsRelative(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

// IsURL reports whether spec parses as an absolute URL
func IsURL(spec string) bool {
	if spec == "" || IsRelative(spec) {
		return false
	}
	u, err := url.Parse(spec)
	return err == nil && u.Scheme != ""
}

// IsBare reports whether spec names a package rather than a path or URL
func IsBare(spec string) bool {
	return Classify(spec).Class == Bare
}

// SplitPackage splits a package specifier into its package name and subpath.
// "@scope/pkg/a/b.css" yields ("@scope/pkg", "a/b.css"), "pkg@1/x" yields ("pkg@1", "x").
func SplitPackage(spec string) (name, subpath string) {
	segments := strings.Split(spec, "/")
	n := 1
	if strings.HasPrefix(spec, "@") && len(segments) > 1 {
		n = 2
	}
	if len(segments) <= n {
		return spec, ""
	}
	return strings.Join(segments[:n], "/"), strings.Join(segments[n:], "/")
}
