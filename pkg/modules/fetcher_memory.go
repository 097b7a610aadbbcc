package modules

import (
	"context"
	"net/http"
	"sort"
	"sync"

	merrors "moduletsx/pkg/errors"
)

// MemoryFetcher serves sources from an in-memory store keyed by absolute URL
type MemoryFetcher struct {
	name     string                   // Human-readable name
	modules  map[string]*MemoryModule // Map of URL -> module
	fetches  map[string]int           // Map of URL -> number of fetches
	mutex    sync.RWMutex             // Protects concurrent access
	priority int                      // Fetch priority
}

// MemoryModule represents a source stored in memory
type MemoryModule struct {
	URL     string // Absolute URL
	Content string // Source content
}

// NewMemoryFetcher creates a new memory-based fetcher
func NewMemoryFetcher(name string) *MemoryFetcher {
	if name == "" {
		name = "Memory"
	}

	return &MemoryFetcher{
		name:     name,
		modules:  make(map[string]*MemoryModule),
		fetches:  make(map[string]int),
		priority: 50, // Ahead of file system and network fetchers
	}
}

// Name returns the fetcher name
func (f *MemoryFetcher) Name() string {
	return f.name
}

// CanFetch returns true if a source is stored under url
func (f *MemoryFetcher) CanFetch(url string) bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	_, exists := f.modules[url]
	return exists
}

// Priority returns the fetcher priority
func (f *MemoryFetcher) Priority() int {
	return f.priority
}

// SetPriority sets the fetcher priority
func (f *MemoryFetcher) SetPriority(priority int) {
	f.priority = priority
}

// Fetch returns the source stored under url
func (f *MemoryFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", (&merrors.NetworkError{URL: url, Msg: "canceled"}).CausedBy(err)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.fetches[url]++
	module, exists := f.modules[url]
	if !exists {
		return "", &merrors.NetworkError{URL: url, StatusCode: http.StatusNotFound, Msg: http.StatusText(http.StatusNotFound)}
	}
	return module.Content, nil
}

// AddModule stores content under url, replacing any previous content
func (f *MemoryFetcher) AddModule(url string, content string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.modules[url] = &MemoryModule{URL: url, Content: content}
}

// RemoveModule removes the source stored under url
func (f *MemoryFetcher) RemoveModule(url string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.modules, url)
}

// ListModules returns the stored URLs in sorted order
func (f *MemoryFetcher) ListModules() []string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	urls := make([]string, 0, len(f.modules))
	for u := range f.modules {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// FetchCount returns how many times url was fetched, including misses
func (f *MemoryFetcher) FetchCount(url string) int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	return f.fetches[url]
}
