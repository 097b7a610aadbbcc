// Package driver ties the pipeline to a host: it owns the transformer, the
// unit store and the native loader of one session, discovers what a document
// declares and bootstraps its scripts.
package driver

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"moduletsx/pkg/document"
	"moduletsx/pkg/importmap"
	"moduletsx/pkg/modules"
	"moduletsx/pkg/units"
)

// Session is a long-lived loading context. Units and the import map live as
// long as the session does.
type Session struct {
	config      *modules.Config
	transformer *modules.Transformer
	store       *units.Store
	loader      modules.NativeLoader
	logger      *log.Logger

	fetchers   []modules.Fetcher
	extraMaps  [][]byte
	extraBase  string
	unitPrefix string

	listenerMutex sync.RWMutex
	listeners     map[string]map[int]func(Event)
	nextListener  int
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger shared by the session and its transformer
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithFetchers adds fetchers to the session's fetch chain
func WithFetchers(fetchers ...modules.Fetcher) Option {
	return func(s *Session) { s.fetchers = append(s.fetchers, fetchers...) }
}

// WithUnitPrefix sets the prefix of unit identifiers, e.g. the URL the
// server exposes units under
func WithUnitPrefix(prefix string) Option {
	return func(s *Session) { s.unitPrefix = prefix }
}

// WithLoader replaces the native loader
func WithLoader(loader modules.NativeLoader) Option {
	return func(s *Session) { s.loader = loader }
}

// WithImportMaps adds import maps that are merged after the ones a document
// declares
func WithImportMaps(tables ...[]byte) Option {
	return func(s *Session) { s.extraMaps = append(s.extraMaps, tables...) }
}

// WithImportMapBase sets the URL that the tables given by WithImportMaps are
// resolved against. Without it they resolve against the loaded document.
func WithImportMapBase(baseURL string) Option {
	return func(s *Session) { s.extraBase = baseURL }
}

// NewSession creates a session
func NewSession(config *modules.Config, opts ...Option) *Session {
	if config == nil {
		config = modules.DefaultConfig()
	}
	s := &Session{
		config:    config,
		logger:    log.New(io.Discard),
		listeners: make(map[string]map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = units.NewStore(s.unitPrefix)
	if s.loader == nil {
		s.loader = units.NewLoader(s.store)
	}
	s.transformer = modules.NewTransformer(config, s.store,
		modules.WithLogger(s.logger),
		modules.WithFetchers(s.fetchers...),
	)
	s.transformer.OnTransform(s.forwardTransform)

	if len(s.extraMaps) > 0 {
		s.SetImportMaps("", nil)
	}
	return s
}

// Transformer returns the session's transformer
func (s *Session) Transformer() *modules.Transformer {
	return s.transformer
}

// Store returns the session's unit store
func (s *Session) Store() *units.Store {
	return s.store
}

// Logger returns the session logger
func (s *Session) Logger() *log.Logger {
	return s.logger
}

// Transform runs the pipeline for one resource and returns the unit identifier
func (s *Session) Transform(ctx context.Context, kind modules.ResourceKind, sourceURL, code string) (string, error) {
	return s.transformer.Transform(ctx, kind, sourceURL, code)
}

// ImportByIdentifier locates id relative to baseURL (through the import map
// for bare identifiers, the CDN otherwise), fetches it and imports it.
func (s *Session) ImportByIdentifier(ctx context.Context, id, baseURL string) (*modules.Unit, error) {
	s.emit(EventImport, ImportPayload{ID: id, BaseURL: baseURL})

	unit, err := s.importByIdentifier(ctx, id, baseURL)
	if err != nil {
		s.emit(EventImportError, ImportPayload{ID: id, BaseURL: baseURL, Err: err})
		return nil, err
	}
	return unit, nil
}

func (s *Session) importByIdentifier(ctx context.Context, id, baseURL string) (*modules.Unit, error) {
	sourceURL, err := s.transformer.Locate(id, baseURL)
	if err != nil {
		return nil, fmt.Errorf("locating %q: %w", id, err)
	}
	if record, ok := s.transformer.Lookup(sourceURL); ok {
		return s.loader.Load(ctx, record.ID)
	}
	code, err := s.transformer.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	return s.ImportSource(ctx, sourceURL, code)
}

// ImportSource transforms module code found at sourceURL and loads the result
func (s *Session) ImportSource(ctx context.Context, sourceURL, code string) (*modules.Unit, error) {
	id, err := s.transformer.Transform(ctx, modules.KindModule, sourceURL, code)
	if err != nil {
		return nil, err
	}
	return s.loader.Load(ctx, id)
}

// ImportInline transforms module code embedded in the document at baseURL
// and loads the result
func (s *Session) ImportInline(ctx context.Context, baseURL, code string) (*modules.Unit, error) {
	id, err := s.transformer.TransformInline(ctx, baseURL, code)
	if err != nil {
		return nil, err
	}
	return s.loader.Load(ctx, id)
}

// LoadDocument reads an HTML document, installs the import map it declares
// and returns what it found. Import maps that cannot be fetched or parsed are
// logged and skipped.
func (s *Session) LoadDocument(ctx context.Context, r io.Reader, docURL string) (*document.Document, error) {
	doc, err := document.Parse(r, docURL)
	if err != nil {
		return nil, err
	}

	tables := make([][]byte, 0, len(doc.ImportMaps))
	var fetchErrs []error
	for _, m := range doc.ImportMaps {
		if m.Src == "" {
			tables = append(tables, m.JSON)
			continue
		}
		text, err := s.transformer.Fetch(ctx, m.Src)
		if err != nil {
			tables = append(tables, nil)
			fetchErrs = append(fetchErrs, err)
			continue
		}
		tables = append(tables, []byte(text))
	}

	s.SetImportMaps(docURL, tables, fetchErrs...)
	s.logger.Debug("document loaded", "url", docURL, "importmaps", len(doc.ImportMaps), "scripts", len(doc.Scripts))
	return doc, nil
}

// SetImportMaps merges the declared tables in order, followed by the
// session's extra tables, and installs the result. A nil entry in tables
// stands for a declared map that could not be obtained; fetchErrs supplies
// the reasons for those entries in order.
func (s *Session) SetImportMaps(baseURL string, tables [][]byte, fetchErrs ...error) *importmap.Table {
	b := importmap.NewBuilder(baseURL)
	for _, data := range tables {
		if data == nil && len(fetchErrs) > 0 {
			b.Skip(fetchErrs[0])
			fetchErrs = fetchErrs[1:]
			continue
		}
		b.Add(data)
	}
	if s.extraBase != "" {
		b.Rebase(s.extraBase)
	}
	for _, data := range s.extraMaps {
		b.Add(data)
	}

	table, errs := b.Build()
	for _, err := range errs {
		s.logger.WithPrefix("importmap").Warn("skipping import map", "error", err)
	}
	s.transformer.SetImportMap(table)
	return table
}
