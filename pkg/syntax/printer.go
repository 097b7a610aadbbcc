package syntax

import (
	"fmt"
	"sort"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"

	merrors "moduletsx/pkg/errors"
)

// PrintOptions controls lowering of TypeScript and JSX
type PrintOptions struct {
	JSXFactory  string // default "React.createElement"
	JSXFragment string // default "React.Fragment"
}

// Print renders t as JavaScript the host can execute natively. Specifier
// literals carry their rewritten values, synthetic imports are emitted first,
// and the result is lowered when the module is not already plain JavaScript.
func Print(t *Tree, opts PrintOptions) (string, error) {
	code := Splice(t)
	if !NeedsLowering(t) {
		return code, nil
	}
	return lower(t, code, opts)
}

// Splice renders t without lowering
func Splice(t *Tree) string {
	content := ""
	if t.File != nil {
		content = t.File.Content
	}

	var sb strings.Builder
	var lits []*StringLit
	for _, n := range t.Nodes {
		lit := SourceOf(n)
		if lit == nil {
			continue
		}
		if decl, ok := n.(*ImportDecl); ok && decl.Synthetic {
			sb.WriteString(printImport(decl))
			sb.WriteByte('\n')
			continue
		}
		if !lit.Synthetic() {
			lits = append(lits, lit)
		}
	}
	sort.Slice(lits, func(i, j int) bool { return lits[i].Start < lits[j].Start })

	pos := 0
	for _, lit := range lits {
		if lit.Start < pos || lit.End > len(content) {
			continue
		}
		raw := content[lit.Start:lit.End]
		if len(raw) >= 2 && unescape(raw[1:len(raw)-1]) == lit.Value {
			continue
		}
		sb.WriteString(content[pos:lit.Start])
		sb.WriteString(quote(lit.Value, lit.Quote))
		pos = lit.End
	}
	sb.WriteString(content[pos:])
	return sb.String()
}

func printImport(decl *ImportDecl) string {
	src := quote(decl.Source.Value, decl.Source.Quote)
	switch {
	case decl.DefaultBinding != "":
		return fmt.Sprintf("import %s from %s;", decl.DefaultBinding, src)
	case decl.NamespaceBinding != "":
		return fmt.Sprintf("import * as %s from %s;", decl.NamespaceBinding, src)
	default:
		return fmt.Sprintf("import %s;", src)
	}
}

// NeedsLowering reports whether the module must go through the TypeScript/JSX
// lowering step. Plain JavaScript without JSX is printed as is.
func NeedsLowering(t *Tree) bool {
	if t.HasJSX() {
		return true
	}
	if t.File == nil {
		return true
	}
	switch t.File.Ext() {
	case ".js", ".mjs", ".cjs":
		return false
	default:
		return true
	}
}

func loaderFor(t *Tree) esbuild.Loader {
	ext := ""
	if t.File != nil {
		ext = t.File.Ext()
	}
	switch ext {
	case ".ts", ".mts", ".cts":
		return esbuild.LoaderTS
	case ".jsx", ".js", ".mjs", ".cjs":
		return esbuild.LoaderJSX
	default:
		return esbuild.LoaderTSX
	}
}

func lower(t *Tree, code string, opts PrintOptions) (string, error) {
	factory, fragment := opts.JSXFactory, opts.JSXFragment
	if factory == "" {
		factory = "React.createElement"
	}
	if fragment == "" {
		fragment = "React.Fragment"
	}

	sourceURL := ""
	sourceName := "<stdin>"
	if t.File != nil {
		sourceURL = t.File.URL
		sourceName = t.File.DisplayPath()
	}

	ret := esbuild.Transform(code, esbuild.TransformOptions{
		Loader:      loaderFor(t),
		Sourcefile:  sourceName,
		Target:      esbuild.ESNext,
		JSX:         esbuild.JSXTransform,
		JSXFactory:  factory,
		JSXFragment: fragment,
	})
	if len(ret.Errors) > 0 {
		msg := ret.Errors[0]
		text := msg.Text
		if msg.Location != nil {
			text = fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column+1, msg.Text)
		}
		return "", &merrors.TransformError{URL: sourceURL, Msg: text}
	}
	return string(ret.Code), nil
}
