// Package units stores generated loadable units and serves them to the host.
package units

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"moduletsx/pkg/modules"
)

// ErrNotFound is returned when no unit is registered under an identifier
var ErrNotFound = errors.New("unit not found")

// DefaultPrefix is the identifier prefix used when none is configured
const DefaultPrefix = "blob:moduletsx/"

// Store is an in-memory unit store. Identifiers are derived from the source
// URL, so a unit keeps its identifier across store instances.
type Store struct {
	prefix string
	mutex  sync.RWMutex
	units  map[string]*modules.Unit // id -> unit
	byURL  map[string]string        // source URL -> id
}

// NewStore creates a store whose identifiers start with prefix
func NewStore(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		prefix: prefix,
		units:  make(map[string]*modules.Unit),
		byURL:  make(map[string]string),
	}
}

// Prefix returns the identifier prefix
func (s *Store) Prefix() string {
	return s.prefix
}

// Allocate returns the identifier for sourceURL
func (s *Store) Allocate(sourceURL string) string {
	return fmt.Sprintf("%s%016x.js", s.prefix, xxhash.Sum64String(sourceURL))
}

// Register stores code under id
func (s *Store) Register(id, sourceURL, code string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.units[id] = &modules.Unit{ID: id, SourceURL: sourceURL, Code: code}
	s.byURL[sourceURL] = id
}

// Lookup returns the unit registered under id
func (s *Store) Lookup(id string) (*modules.Unit, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	unit, ok := s.units[id]
	return unit, ok
}

// SourceURL returns the URL the unit id was generated from
func (s *Store) SourceURL(id string) (string, bool) {
	unit, ok := s.Lookup(id)
	if !ok {
		return "", false
	}
	return unit.SourceURL, true
}

// IDFor returns the identifier registered for sourceURL
func (s *Store) IDFor(sourceURL string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byURL[sourceURL]
	return id, ok
}

// List returns all registered units sorted by identifier
func (s *Store) List() []*modules.Unit {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	units := make([]*modules.Unit, 0, len(s.units))
	for _, u := range s.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}

// Len returns the number of registered units
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.units)
}

// Loader loads units from a Store
type Loader struct {
	store *Store
}

// NewLoader creates a loader over store
func NewLoader(store *Store) *Loader {
	return &Loader{store: store}
}

// Load returns the unit registered under id
func (l *Loader) Load(ctx context.Context, id string) (*modules.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unit, ok := l.store.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return unit, nil
}

// idFromPath maps a request path such as "/_units/0123abcd.js" to an identifier
func (s *Store) idFromPath(p string) string {
	name := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		name = p[i+1:]
	}
	return s.prefix + name
}

var (
	_ modules.UnitStore    = (*Store)(nil)
	_ modules.NativeLoader = (*Loader)(nil)
)
