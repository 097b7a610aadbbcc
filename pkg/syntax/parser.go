package syntax

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/source"
)

// Grammar selects the tree-sitter language used for a module
type Grammar int

const (
	TSX        Grammar = iota // TypeScript with JSX; also parses plain JavaScript
	TypeScript                // TypeScript without JSX, so `<T>expr` assertions parse
)

func (g Grammar) String() string {
	if g == TypeScript {
		return "typescript"
	}
	return "tsx"
}

// GrammarFor picks the grammar for a file extension such as ".ts"
func GrammarFor(ext string) Grammar {
	switch ext {
	case ".ts", ".mts", ".cts":
		return TypeScript
	default:
		return TSX
	}
}

var (
	tsxLanguage        = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	typescriptLanguage = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())

	parserPools = map[Grammar]*sync.Pool{
		TSX:        {},
		TypeScript: {},
	}
)

func acquireParser(g Grammar) (*sitter.Parser, error) {
	if p, ok := parserPools[g].Get().(*sitter.Parser); ok {
		return p, nil
	}
	lang := tsxLanguage
	if g == TypeScript {
		lang = typescriptLanguage
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("syntax: loading %s grammar: %w", g, err)
	}
	return p, nil
}

func releaseParser(g Grammar, p *sitter.Parser) {
	p.Reset()
	parserPools[g].Put(p)
}

// Parse parses file into a Tree. Malformed source yields an *errors.ParseError
// positioned at the first missing or erroneous node.
func Parse(file *source.File) (*Tree, error) {
	g := GrammarFor(file.Ext())
	p, err := acquireParser(g)
	if err != nil {
		return nil, err
	}
	defer releaseParser(g, p)

	src := []byte(file.Content)
	tsTree := p.Parse(src, nil)
	if tsTree == nil {
		return nil, &merrors.ParseError{Position: merrors.PositionAt(file, 0, 0), Msg: "parser returned no tree"}
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root.HasError() {
		return nil, syntaxError(file, root)
	}

	b := &builder{src: src, tree: &Tree{File: file, Grammar: g}}
	b.visit(root)
	return b.tree, nil
}

type builder struct {
	src  []byte
	tree *Tree
}

func (b *builder) add(n Node) {
	b.tree.Nodes = append(b.tree.Nodes, n)
}

func (b *builder) visit(n *sitter.Node) {
	start, end := int(n.StartByte()), int(n.EndByte())

	switch n.Kind() {
	case "import_statement":
		decl := &ImportDecl{Start: start, End: end}
		if s := n.ChildByFieldName("source"); s != nil && s.Kind() == "string" {
			decl.Source = b.stringLit(s)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			switch {
			case child == nil:
			case !child.IsNamed() && child.Kind() == "type":
				decl.TypeOnly = true
			case child.Kind() == "import_clause":
				b.importClause(child, decl)
			}
		}
		if decl.Source != nil {
			b.add(decl)
		}
		return

	case "export_statement":
		if s := n.ChildByFieldName("source"); s != nil && s.Kind() == "string" {
			b.add(&ExportFrom{Start: start, End: end, Source: b.stringLit(s)})
			return
		}

	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "import" {
			call := &DynamicImport{Start: start, End: end}
			if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
				if first := args.NamedChild(0); first != nil && first.Kind() == "string" {
					call.Source = b.stringLit(first)
				}
			}
			b.add(call)
		}

	case "jsx_element":
		fragment := false
		if open := n.ChildByFieldName("open_tag"); open != nil && open.ChildByFieldName("name") == nil {
			fragment = true
		}
		b.add(&JSXElement{Start: start, End: end, Fragment: fragment})

	case "jsx_self_closing_element":
		b.add(&JSXElement{Start: start, End: end})

	case "variable_declarator":
		if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
			b.add(&Binding{Start: start, End: end, Name: name.Utf8Text(b.src)})
		}
	}

	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child != nil {
			b.visit(child)
		}
	}
}

func (b *builder) importClause(clause *sitter.Node, decl *ImportDecl) {
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			decl.DefaultBinding = child.Utf8Text(b.src)
		case "namespace_import":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if id := child.NamedChild(j); id != nil && id.Kind() == "identifier" {
					decl.NamespaceBinding = id.Utf8Text(b.src)
				}
			}
		}
	}
}

func (b *builder) stringLit(n *sitter.Node) *StringLit {
	start, end := int(n.StartByte()), int(n.EndByte())
	raw := string(b.src[start:end])
	lit := &StringLit{Start: start, End: end, Quote: '"'}
	if len(raw) >= 2 {
		lit.Quote = raw[0]
		lit.Value = unescape(raw[1 : len(raw)-1])
	}
	return lit
}

func syntaxError(file *source.File, root *sitter.Node) *merrors.ParseError {
	missing := findFirst(root, (*sitter.Node).IsMissing)
	errorNode := missing
	if errorNode == nil {
		errorNode = findFirst(root, (*sitter.Node).IsError)
	}
	if errorNode == nil {
		errorNode = root
	}

	msg := "syntax error"
	if missing != nil {
		msg = "syntax error: expected " + expectedKind(missing.Kind())
	}
	return &merrors.ParseError{
		Position: merrors.PositionAt(file, int(errorNode.StartByte()), int(errorNode.EndByte())),
		Msg:      msg,
	}
}

func findFirst(root *sitter.Node, match func(*sitter.Node) bool) *sitter.Node {
	var best *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if match(n) && (best == nil || n.StartByte() < best.StartByte()) {
			best = n
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return best
}

func expectedKind(kind string) string {
	trimmed := strings.TrimSpace(kind)
	if trimmed == "" {
		return "token"
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return strings.ReplaceAll(trimmed, "_", " ")
		}
	}
	return "'" + trimmed + "'"
}
