// Package importmap parses declarative import maps and resolves specifiers through them.
package importmap

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"

	merrors "moduletsx/pkg/errors"
)

// Table is a merged import map. It is immutable once built.
type Table struct {
	Imports map[string]string            `json:"imports,omitempty"`
	Scopes  map[string]map[string]string `json:"scopes,omitempty"`

	scopeOrder []string // scope keys, longest first
	indexOnce  sync.Once
}

// Empty returns a table with no mappings
func Empty() *Table {
	return &Table{
		Imports: make(map[string]string),
		Scopes:  make(map[string]map[string]string),
	}
}

// Builder merges declared import maps in document order
type Builder struct {
	baseURL *url.URL
	table   *Table
	index   int
	errs    []error
}

// NewBuilder creates a builder. When baseURL is non-empty, path-like targets
// and scope keys are resolved against it, as a document does for its own maps.
func NewBuilder(baseURL string) *Builder {
	b := &Builder{table: Empty()}
	return b.Rebase(baseURL)
}

type declared struct {
	Imports map[string]string            `json:"imports"`
	Scopes  map[string]map[string]string `json:"scopes"`
}

// Add merges one declared table given as JSON text. A specifier (per scope)
// that is already mapped keeps its first target. A malformed table is skipped
// and recorded as an *errors.ImportMapError.
func (b *Builder) Add(data []byte) *Builder {
	idx := b.index
	b.index++

	var d declared
	if err := json.Unmarshal(data, &d); err != nil {
		b.errs = append(b.errs, (&merrors.ImportMapError{Index: idx, Msg: "invalid import map JSON"}).CausedBy(err))
		return b
	}

	for spec, target := range d.Imports {
		if target == "" {
			continue
		}
		if _, exists := b.table.Imports[spec]; !exists {
			b.table.Imports[spec] = b.absolute(target)
		}
	}

	for scope, imports := range d.Scopes {
		scopeKey := b.absolute(scope)
		scoped := b.table.Scopes[scopeKey]
		if scoped == nil {
			scoped = make(map[string]string)
			b.table.Scopes[scopeKey] = scoped
		}
		for spec, target := range imports {
			if target == "" {
				continue
			}
			if _, exists := scoped[spec]; !exists {
				scoped[spec] = b.absolute(target)
			}
		}
	}
	return b
}

// Rebase changes the URL that tables added from now on are resolved against
func (b *Builder) Rebase(baseURL string) *Builder {
	b.baseURL = nil
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			b.baseURL = u
		}
	}
	return b
}

// Skip records a declared table that could not be obtained at all, such as an
// external map whose fetch failed
func (b *Builder) Skip(cause error) *Builder {
	b.errs = append(b.errs, (&merrors.ImportMapError{Index: b.index, Msg: "import map unavailable"}).CausedBy(cause))
	b.index++
	return b
}

// Build returns the merged table together with the errors of skipped tables
func (b *Builder) Build() (*Table, []error) {
	t := &Table{
		Imports: make(map[string]string, len(b.table.Imports)),
		Scopes:  make(map[string]map[string]string, len(b.table.Scopes)),
	}
	for k, v := range b.table.Imports {
		t.Imports[k] = v
	}
	for scope, imports := range b.table.Scopes {
		copied := make(map[string]string, len(imports))
		for k, v := range imports {
			copied[k] = v
		}
		t.Scopes[scope] = copied
	}
	t.indexOnce.Do(t.index)
	return t, b.errs
}

func (b *Builder) absolute(ref string) string {
	if b.baseURL == nil {
		return ref
	}
	if !strings.HasPrefix(ref, "./") && !strings.HasPrefix(ref, "../") && !strings.HasPrefix(ref, "/") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.baseURL.ResolveReference(u).String()
}

// Merge builds a table from declared tables in order
func Merge(baseURL string, tables ...[]byte) (*Table, []error) {
	b := NewBuilder(baseURL)
	for _, data := range tables {
		b.Add(data)
	}
	return b.Build()
}

func (t *Table) index() {
	t.scopeOrder = make([]string, 0, len(t.Scopes))
	for scope := range t.Scopes {
		t.scopeOrder = append(t.scopeOrder, scope)
	}
	sort.Slice(t.scopeOrder, func(i, j int) bool {
		if len(t.scopeOrder[i]) != len(t.scopeOrder[j]) {
			return len(t.scopeOrder[i]) > len(t.scopeOrder[j])
		}
		return t.scopeOrder[i] < t.scopeOrder[j]
	})
}

// Resolve looks spec up in the scopes matching requestingURL (most specific
// first) and then in the top-level imports. requestingURL may be empty.
func (t *Table) Resolve(spec, requestingURL string) (string, bool) {
	if t == nil {
		return "", false
	}
	if requestingURL != "" && len(t.Scopes) > 0 {
		t.indexOnce.Do(t.index)
		for _, scope := range t.scopeOrder {
			if !strings.HasPrefix(requestingURL, scope) {
				continue
			}
			if target, ok := lookup(t.Scopes[scope], spec); ok {
				return target, true
			}
		}
	}
	return lookup(t.Imports, spec)
}

// Len returns the number of top-level and scoped mappings
func (t *Table) Len() int {
	n := len(t.Imports)
	for _, imports := range t.Scopes {
		n += len(imports)
	}
	return n
}

// lookup matches spec exactly, then by the longest trailing-slash key that prefixes it
func lookup(imports map[string]string, spec string) (string, bool) {
	if target, ok := imports[spec]; ok {
		return target, true
	}
	best := ""
	for key := range imports {
		if strings.HasSuffix(key, "/") && strings.HasPrefix(spec, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return "", false
	}
	return imports[best] + spec[len(best):], true
}
