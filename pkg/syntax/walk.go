package syntax

// Walk calls visit for every node in pre-order until visit returns false
func Walk(t *Tree, visit func(Node) bool) {
	for _, n := range t.Nodes {
		if !visit(n) {
			return
		}
	}
}

// CollectSpecifiers returns the distinct module specifiers of every static
// import, re-export and literal dynamic import, in order of first appearance.
func CollectSpecifiers(t *Tree) []string {
	seen := make(map[string]struct{})
	var specs []string
	Walk(t, func(n Node) bool {
		lit := SourceOf(n)
		if lit == nil {
			return true
		}
		if _, ok := seen[lit.Value]; !ok {
			seen[lit.Value] = struct{}{}
			specs = append(specs, lit.Value)
		}
		return true
	})
	return specs
}

// Rewrite returns a copy of t in which every specifier literal with an entry
// in resolved carries the mapped value. Everything else is shared with t.
func Rewrite(t *Tree, resolved map[string]string) *Tree {
	out := &Tree{File: t.File, Grammar: t.Grammar, Nodes: make([]Node, len(t.Nodes))}
	for i, n := range t.Nodes {
		out.Nodes[i] = rewriteNode(n, resolved)
	}
	return out
}

func rewriteNode(n Node, resolved map[string]string) Node {
	lit := SourceOf(n)
	if lit == nil {
		return n
	}
	target, ok := resolved[lit.Value]
	if !ok || target == lit.Value {
		return n
	}
	replaced := *lit
	replaced.Value = target

	switch n := n.(type) {
	case *ImportDecl:
		c := *n
		c.Source = &replaced
		return &c
	case *ExportFrom:
		c := *n
		c.Source = &replaced
		return &c
	case *DynamicImport:
		c := *n
		c.Source = &replaced
		return &c
	}
	return n
}
