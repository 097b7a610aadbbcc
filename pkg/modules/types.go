package modules

import (
	"runtime"
	"time"

	merrors "moduletsx/pkg/errors"
	"moduletsx/pkg/syntax"
)

// ResourceKind determines which part of the pipeline produces a unit
type ResourceKind string

const (
	KindModule           ResourceKind = "module"
	KindStylesheet       ResourceKind = "stylesheet"
	KindStylesheetModule ResourceKind = "stylesheet-module"
)

// Validate returns an *errors.UnsupportedKindError for unknown kinds
func (k ResourceKind) Validate() error {
	switch k {
	case KindModule, KindStylesheet, KindStylesheetModule:
		return nil
	default:
		return &merrors.UnsupportedKindError{Requested: string(k)}
	}
}

// ParseResourceKind converts s into a ResourceKind
func ParseResourceKind(s string) (ResourceKind, error) {
	k := ResourceKind(s)
	return k, k.Validate()
}

// Unit is a registered loadable unit
type Unit struct {
	ID        string // Identifier the host loads the unit by
	SourceURL string // URL of the resource the unit was generated from
	Code      string // Generated JavaScript
}

// UnitRecord is the cache entry for a completed transform
type UnitRecord struct {
	SourceURL    string
	ID           string
	Kind         ResourceKind
	Dependencies []string      // Source URLs of local dependencies
	Registered   time.Time     // When the unit was registered
	Duration     time.Duration // Time spent producing the unit
}

// Config configures the transformer
type Config struct {
	CDNBase      string         // Base URL bare specifiers are resolved against
	NodeLibsBase string         // Base URL of browser builds of node: modules
	Runtime      syntax.Runtime // JSX runtime binding and package
	JSXFactory   string
	JSXFragment  string

	MaxConcurrentFetches int // 0 = number of CPUs * 4
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *Config {
	return &Config{
		CDNBase:              "https://esm.sh/",
		NodeLibsBase:         "https://raw.esm.sh/@jspm/core/nodelibs/browser/",
		Runtime:              syntax.DefaultRuntime,
		JSXFactory:           "React.createElement",
		JSXFragment:          "React.Fragment",
		MaxConcurrentFetches: runtime.NumCPU() * 4,
	}
}

// RegistryStats contains statistics about the unit cache
type RegistryStats struct {
	TotalUnits  int // Units registered
	CacheHits   int // Lookups answered from the cache
	CacheMisses int // Lookups that had to run the pipeline
}

// Stats contains overall transformer statistics
type Stats struct {
	Registry     RegistryStats
	Dependencies DependencyStats
	Parses       int           // Module sources parsed
	Fetches      int           // Sources fetched
	Failures     int           // Transforms that failed
	InFlight     int           // Transforms currently running
	TotalTime    time.Duration // Time spent producing units
}
