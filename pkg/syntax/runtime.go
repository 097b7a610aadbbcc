package syntax

import (
	"sync"

	"github.com/dlclark/regexp2"
)

// Runtime names the binding JSX compiles against and the package that provides it
type Runtime struct {
	Identifier string // e.g. "React"
	Package    string // e.g. "react"
}

// DefaultRuntime is the classic React runtime
var DefaultRuntime = Runtime{Identifier: "React", Package: "react"}

var runtimeMatchers sync.Map // package name -> *regexp2.Regexp

// matcher recognises specifiers that load the runtime package: "react",
// "react@18", "https://esm.sh/react" and "https://esm.sh/react@18.2.0".
func (r Runtime) matcher() *regexp2.Regexp {
	if re, ok := runtimeMatchers.Load(r.Package); ok {
		return re.(*regexp2.Regexp)
	}
	re := regexp2.MustCompile(`^(?:.*/)?`+regexp2.Escape(r.Package)+`(?:@[^/]+)?$`, regexp2.None)
	actual, _ := runtimeMatchers.LoadOrStore(r.Package, re)
	return actual.(*regexp2.Regexp)
}

// HasBinding reports whether name is bound by a default import, a namespace
// import or a variable declaration anywhere in t.
func HasBinding(t *Tree, name string) bool {
	found := false
	Walk(t, func(n Node) bool {
		switch n := n.(type) {
		case *ImportDecl:
			found = !n.TypeOnly && (n.DefaultBinding == name || n.NamespaceBinding == name)
		case *Binding:
			found = n.Name == name
		}
		return !found
	})
	return found
}

// NeedsRuntimeImport reports whether t uses JSX without the runtime identifier in scope
func NeedsRuntimeImport(t *Tree, r Runtime) bool {
	return t.HasJSX() && !HasBinding(t, r.Identifier)
}

// RuntimeSpecifier returns the specifier an existing import already uses for
// the runtime package, or the bare package name when there is none.
func RuntimeSpecifier(t *Tree, r Runtime) string {
	re := r.matcher()
	spec := r.Package
	Walk(t, func(n Node) bool {
		decl, ok := n.(*ImportDecl)
		if !ok || decl.TypeOnly || decl.Source == nil {
			return true
		}
		if matched, err := re.MatchString(decl.Source.Value); err == nil && matched {
			spec = decl.Source.Value
			return false
		}
		return true
	})
	return spec
}

// InjectRuntimeImport prepends `import <Identifier> from "<specifier>"` when
// t needs it. It returns t unchanged and false otherwise.
func InjectRuntimeImport(t *Tree, r Runtime) (*Tree, bool) {
	if !NeedsRuntimeImport(t, r) {
		return t, false
	}
	decl := &ImportDecl{
		Start:          -1,
		End:            -1,
		Source:         &StringLit{Start: -1, End: -1, Quote: '"', Value: RuntimeSpecifier(t, r)},
		DefaultBinding: r.Identifier,
		Synthetic:      true,
	}
	out := &Tree{File: t.File, Grammar: t.Grammar, Nodes: make([]Node, 0, len(t.Nodes)+1)}
	out.Nodes = append(out.Nodes, decl)
	out.Nodes = append(out.Nodes, t.Nodes...)
	return out, true
}
