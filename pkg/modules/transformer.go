package modules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"

	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/importmap"
	"moduletsx/pkg/source"
	"moduletsx/pkg/stylesheet"
	"moduletsx/pkg/syntax"
)

// Transformer turns resources into registered loadable units. It owns the
// unit cache and the import map for its whole lifetime; every unit is
// produced at most once per source URL.
type Transformer struct {
	config   *Config
	store    UnitStore
	fetch    *fetchChain
	registry *registry
	deps     *dependencyAnalyzer
	logger   *log.Logger
	imports  atomic.Pointer[importmap.Table]

	// In-flight transforms by cache key
	mutex    sync.Mutex
	inflight map[string]*call

	observerMutex sync.RWMutex
	observers     map[int]func(TransformEvent)
	nextObserver  int

	parses    atomic.Int64
	fetches   atomic.Int64
	failures  atomic.Int64
	totalTime atomic.Int64
}

// call is a transform in progress. id is reserved before any work starts.
type call struct {
	id   string
	done chan struct{}
	err  error
}

// request describes one transform
type request struct {
	kind    ResourceKind
	key     string // Cache key; the source URL except for inline sources
	baseURL string // URL the source was loaded from
	inline  bool
	code    string
	load    func(ctx context.Context) (string, error) // Fetches code lazily when set
	parent  string                                    // Cache key of the transform that needs this one
}

// TransformEvent describes a finished transform
type TransformEvent struct {
	Kind      ResourceKind
	SourceURL string
	ID        string
	Duration  time.Duration
	Err       error
}

// Option configures a Transformer
type Option func(*Transformer)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// WithImportMap sets the import map consulted before any other resolution
func WithImportMap(table *importmap.Table) Option {
	return func(t *Transformer) { t.SetImportMap(table) }
}

// WithFetchers adds fetchers to the fetch chain
func WithFetchers(fetchers ...Fetcher) Option {
	return func(t *Transformer) {
		for _, f := range fetchers {
			t.fetch.add(f)
		}
	}
}

// NewTransformer creates a transformer registering its units in store
func NewTransformer(config *Config, store UnitStore, opts ...Option) *Transformer {
	if config == nil {
		config = DefaultConfig()
	}

	t := &Transformer{
		config:    config,
		store:     store,
		fetch:     newFetchChain(config.MaxConcurrentFetches),
		registry:  newRegistry(),
		deps:      newDependencyAnalyzer(),
		logger:    log.New(io.Discard),
		inflight:  make(map[string]*call),
		observers: make(map[int]func(TransformEvent)),
	}
	t.imports.Store(importmap.Empty())
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform produces the unit for a resource whose source text is already
// known and returns its identifier. Stylesheets do not need code.
func (t *Transformer) Transform(ctx context.Context, kind ResourceKind, sourceURL, code string) (string, error) {
	return t.transform(ctx, request{kind: kind, key: sourceURL, baseURL: sourceURL, code: code})
}

// TransformURL fetches sourceURL if needed and produces its unit
func (t *Transformer) TransformURL(ctx context.Context, kind ResourceKind, sourceURL string) (string, error) {
	req := request{kind: kind, key: sourceURL, baseURL: sourceURL}
	if kind != KindStylesheet {
		req.load = t.loader(sourceURL)
	}
	return t.transform(ctx, req)
}

// TransformInline produces the unit for module code embedded in the document
// at baseURL. Identical code in the same document shares one unit.
func (t *Transformer) TransformInline(ctx context.Context, baseURL, code string) (string, error) {
	key := fmt.Sprintf("%s#inline-%016x", baseURL, xxhash.Sum64String(code))
	return t.transform(ctx, request{kind: KindModule, key: key, baseURL: baseURL, inline: true, code: code})
}

func (t *Transformer) transform(ctx context.Context, req request) (string, error) {
	if err := req.kind.Validate(); err != nil {
		return "", err
	}
	if record := t.registry.Get(req.key); record != nil {
		return record.ID, nil
	}

	t.mutex.Lock()
	if record := t.registry.peek(req.key); record != nil {
		t.mutex.Unlock()
		return record.ID, nil
	}
	if c, ok := t.inflight[req.key]; ok {
		t.mutex.Unlock()
		return t.join(ctx, c, req)
	}
	c := &call{id: t.store.Allocate(req.key), done: make(chan struct{})}
	t.inflight[req.key] = c
	t.mutex.Unlock()

	if req.parent != "" {
		t.deps.beginWait(req.parent, req.key)
		defer t.deps.endWait(req.parent, req.key)
	}

	// The work outlives the caller that started it: joiners with a live
	// context still get the unit when the first caller gives up.
	go t.run(context.WithoutCancel(ctx), c, req)
	return t.wait(ctx, c)
}

// run produces the unit for an in-flight call and completes it
func (t *Transformer) run(ctx context.Context, c *call, req request) {
	start := time.Now()
	t.logger.Debug("transform start", "kind", req.kind, "url", req.key)
	record, code, err := t.produce(ctx, req)
	duration := time.Since(start)

	t.mutex.Lock()
	if err == nil {
		record.ID = c.id
		record.Duration = duration
		record.Registered = time.Now()
		t.store.Register(c.id, req.key, code)
		t.registry.Set(record)
	}
	delete(t.inflight, req.key)
	t.mutex.Unlock()

	t.totalTime.Add(int64(duration))
	if err != nil {
		t.failures.Add(1)
		t.logger.Debug("transform failed", "kind", req.kind, "url", req.key, "error", err)
	} else {
		t.logger.Debug("transform done", "kind", req.kind, "url", req.key, "id", c.id, "duration", duration)
	}
	t.notify(TransformEvent{Kind: req.kind, SourceURL: req.key, ID: c.id, Duration: duration, Err: err})

	c.err = err
	close(c.done)
}

// wait blocks until c completes or ctx is done
func (t *Transformer) wait(ctx context.Context, c *call) (string, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.id, nil
}

// join waits for an in-flight transform. When that transform is itself
// waiting on the requester the import graph is cyclic, and the reserved
// identifier is returned right away instead.
func (t *Transformer) join(ctx context.Context, c *call, req request) (string, error) {
	if req.parent != "" {
		if !t.deps.beginWait(req.parent, req.key) {
			t.logger.Debug("import cycle", "from", req.parent, "to", req.key)
			return c.id, nil
		}
		defer t.deps.endWait(req.parent, req.key)
	}
	return t.wait(ctx, c)
}

// produce runs the pipeline for one resource and returns the unit code
func (t *Transformer) produce(ctx context.Context, req request) (*UnitRecord, string, error) {
	code := req.code
	if req.load != nil {
		loaded, err := req.load(ctx)
		if err != nil {
			return nil, "", err
		}
		code = loaded
	}

	var file *source.File
	if req.inline {
		file = source.NewInlineSource(req.baseURL, code)
	} else {
		file = source.NewFile(req.baseURL, code)
	}
	t.deps.MarkDiscovered(req.key)

	record := &UnitRecord{SourceURL: req.key, Kind: req.kind}
	var body string
	var err error

	switch req.kind {
	case KindModule:
		body, err = t.transformModule(ctx, file, req.key)
	case KindStylesheet:
		body = stylesheet.LinkModule(file.URL)
	case KindStylesheetModule:
		body, err = stylesheet.CSSModule(file.URL, file.Content)
	}
	if err != nil {
		return nil, "", err
	}

	record.Dependencies = t.deps.GetDependencies(req.key)
	return record, MetadataLine(file.URL) + body, nil
}

// transformModule parses, resolves, rewrites and prints a module
func (t *Transformer) transformModule(ctx context.Context, file *source.File, key string) (string, error) {
	t.parses.Add(1)
	tree, err := syntax.Parse(file)
	if err != nil {
		return "", err
	}

	tree, injected := syntax.InjectRuntimeImport(tree, t.config.Runtime)
	if injected {
		t.logger.Debug("injected JSX runtime import", "url", key, "runtime", t.config.Runtime.Identifier)
	}

	resolved, err := t.resolveAll(ctx, syntax.CollectSpecifiers(tree), key, file.URL)
	if err != nil {
		return "", err
	}

	out, err := syntax.Print(syntax.Rewrite(tree, resolved), syntax.PrintOptions{
		JSXFactory:  t.config.JSXFactory,
		JSXFragment: t.config.JSXFragment,
	})
	if err != nil {
		var transformErr *merrors.TransformError
		if errors.As(err, &transformErr) && transformErr.URL == "" {
			transformErr.URL = file.URL
		}
		return "", err
	}
	return out, nil
}

// loader returns a function fetching sourceURL through the fetch chain
func (t *Transformer) loader(sourceURL string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return t.Fetch(ctx, sourceURL)
	}
}

// Fetch retrieves the text at url through the configured fetchers
func (t *Transformer) Fetch(ctx context.Context, url string) (string, error) {
	t.fetches.Add(1)
	return t.fetch.Fetch(ctx, url)
}

// SetImportMap replaces the import map. A nil table clears it.
func (t *Transformer) SetImportMap(table *importmap.Table) {
	if table == nil {
		table = importmap.Empty()
	}
	t.imports.Store(table)
}

// ImportMap returns the current import map
func (t *Transformer) ImportMap() *importmap.Table {
	return t.imports.Load()
}

// Lookup returns the cache record for a source URL without counting the lookup
func (t *Transformer) Lookup(sourceURL string) (*UnitRecord, bool) {
	record := t.registry.peek(sourceURL)
	return record, record != nil
}

// Units returns the cache records of every unit, sorted by source URL
func (t *Transformer) Units() []*UnitRecord {
	records := make([]*UnitRecord, 0, t.registry.Size())
	for _, u := range t.registry.List() {
		if record := t.registry.peek(u); record != nil {
			records = append(records, record)
		}
	}
	return records
}

// UnitsOfKind returns the cache records of the units of one kind, sorted by
// source URL
func (t *Transformer) UnitsOfKind(kind ResourceKind) []*UnitRecord {
	return t.registry.GetByKind(kind)
}

// ImportCount returns how many transformed modules import sourceURL
func (t *Transformer) ImportCount(sourceURL string) int {
	return t.deps.GetImportCount(sourceURL)
}

// DependencyDepth returns the length of the longest import chain below sourceURL
func (t *Transformer) DependencyDepth(sourceURL string) int {
	return t.deps.GetDependencyDepth(sourceURL)
}

// Edges returns every dependency edge discovered so far
func (t *Transformer) Edges() []Edge {
	return t.deps.Edges()
}

// TopologicalOrder returns source URLs with dependencies first, plus those
// that sit on an import cycle
func (t *Transformer) TopologicalOrder() (order []string, cyclic []string) {
	return t.deps.GetTopologicalOrder()
}

// Stats returns transformer statistics
func (t *Transformer) Stats() Stats {
	t.mutex.Lock()
	inflight := len(t.inflight)
	t.mutex.Unlock()

	return Stats{
		Registry:     t.registry.GetStats(),
		Dependencies: t.deps.GetStats(),
		Parses:       int(t.parses.Load()),
		Fetches:      int(t.fetches.Load()),
		Failures:     int(t.failures.Load()),
		InFlight:     inflight,
		TotalTime:    time.Duration(t.totalTime.Load()),
	}
}

// OnTransform registers fn to be called after every transform. The returned
// function removes it again.
func (t *Transformer) OnTransform(fn func(TransformEvent)) func() {
	t.observerMutex.Lock()
	defer t.observerMutex.Unlock()

	id := t.nextObserver
	t.nextObserver++
	t.observers[id] = fn
	return func() {
		t.observerMutex.Lock()
		defer t.observerMutex.Unlock()
		delete(t.observers, id)
	}
}

func (t *Transformer) notify(ev TransformEvent) {
	t.observerMutex.RLock()
	fns := make([]func(TransformEvent), 0, len(t.observers))
	for _, fn := range t.observers {
		fns = append(fns, fn)
	}
	t.observerMutex.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// MetadataLine is the statement prepended to every unit so that the code
// still sees its original URL as import.meta.url
func MetadataLine(sourceURL string) string {
	return "import.meta.url=" + syntax.JSONString(sourceURL) + ";\n"
}
