package modules

import "context"

// Fetcher retrieves the raw source text of a resource
type Fetcher interface {
	// Name returns a human-readable name for this fetcher
	Name() string

	// CanFetch returns true if this fetcher can handle the given URL
	CanFetch(url string) bool

	// Fetch returns the text at url. A missing or unsuccessful resource
	// yields an *errors.NetworkError.
	Fetch(ctx context.Context, url string) (string, error)

	// Priority returns the priority of this fetcher (lower = higher priority)
	Priority() int
}

// UnitStore holds the loadable units produced by the pipeline
type UnitStore interface {
	// Allocate returns the identifier that the unit for sourceURL will be
	// registered under. It is stable for a given sourceURL.
	Allocate(sourceURL string) string

	// Register stores the generated code under id
	Register(id, sourceURL, code string)

	// Lookup returns the unit registered under id
	Lookup(id string) (*Unit, bool)
}

// NativeLoader loads a registered unit the way the host's own module loader would
type NativeLoader interface {
	Load(ctx context.Context, id string) (*Unit, error)
}
