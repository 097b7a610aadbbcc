// Package syntax parses module source into a small typed tree that covers
// the constructs the pipeline rewrites, and prints it back out.
package syntax

import "moduletsx/pkg/source"

// Node is one of the node kinds the walker understands. The set is closed:
// ImportDecl, ExportFrom, DynamicImport, JSXElement and Binding.
type Node interface {
	Span() (start, end int)
	node()
}

// StringLit is a string literal in the source. Start and End delimit the
// literal including its quotes. Synthetic literals have Start == End == -1.
type StringLit struct {
	Start int
	End   int
	Quote byte   // '"' or '\''
	Value string // Decoded value
}

// Synthetic reports whether the literal was created by a rewrite rather than parsed
func (s *StringLit) Synthetic() bool { return s.Start < 0 }

// ImportDecl is a static import declaration, `import x from "y"` or `import "y"`
type ImportDecl struct {
	Start, End       int
	Source           *StringLit
	DefaultBinding   string // "" when absent
	NamespaceBinding string // "" when absent
	TypeOnly         bool   // `import type ...`
	Synthetic        bool   // Injected, not present in the source text
}

// ExportFrom is a re-export, `export ... from "y"`
type ExportFrom struct {
	Start, End int
	Source     *StringLit
}

// DynamicImport is an `import(...)` call. Source is nil when the first
// argument is not a string literal.
type DynamicImport struct {
	Start, End int
	Source     *StringLit
}

// JSXElement is an element or fragment in JSX syntax
type JSXElement struct {
	Start, End int
	Fragment   bool
}

// Binding is a variable declaration name, such as `React` in `const React = ...`
type Binding struct {
	Start, End int
	Name       string
}

func (n *ImportDecl) Span() (int, int)    { return n.Start, n.End }
func (n *ExportFrom) Span() (int, int)    { return n.Start, n.End }
func (n *DynamicImport) Span() (int, int) { return n.Start, n.End }
func (n *JSXElement) Span() (int, int)    { return n.Start, n.End }
func (n *Binding) Span() (int, int)       { return n.Start, n.End }

func (*ImportDecl) node()    {}
func (*ExportFrom) node()    {}
func (*DynamicImport) node() {}
func (*JSXElement) node()    {}
func (*Binding) node()       {}

// Tree is a parsed module. Nodes are stored in depth-first pre-order;
// synthetic nodes come first.
type Tree struct {
	File    *source.File
	Grammar Grammar
	Nodes   []Node
}

// HasJSX reports whether the tree contains any JSX element or fragment
func (t *Tree) HasJSX() bool {
	for _, n := range t.Nodes {
		if _, ok := n.(*JSXElement); ok {
			return true
		}
	}
	return false
}

// SourceOf returns the module specifier literal carried by n, or nil
func SourceOf(n Node) *StringLit {
	switch n := n.(type) {
	case *ImportDecl:
		return n.Source
	case *ExportFrom:
		return n.Source
	case *DynamicImport:
		return n.Source
	default:
		return nil
	}
}
