package modules

import (
	"sort"
	"sync"
)

// registry is the unit cache: source URL -> completed unit record.
// Entries are never evicted.
type registry struct {
	units map[string]*UnitRecord
	mutex sync.RWMutex
	stats RegistryStats
}

func newRegistry() *registry {
	return &registry{units: make(map[string]*UnitRecord)}
}

// Get retrieves a record by source URL and counts the lookup
func (r *registry) Get(sourceURL string) *UnitRecord {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record := r.units[sourceURL]
	if record != nil {
		r.stats.CacheHits++
	} else {
		r.stats.CacheMisses++
	}
	return record
}

// peek retrieves a record without touching the statistics
func (r *registry) peek(sourceURL string) *UnitRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.units[sourceURL]
}

// Set stores a record. An existing record for the same URL is kept.
func (r *registry) Set(record *UnitRecord) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.units[record.SourceURL]; exists {
		return false
	}
	r.units[record.SourceURL] = record
	r.stats.TotalUnits++
	return true
}

// List returns all cached source URLs in sorted order
func (r *registry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	urls := make([]string, 0, len(r.units))
	for u := range r.units {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Size returns the number of cached units
func (r *registry) Size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.units)
}

// GetStats returns current registry statistics
func (r *registry) GetStats() RegistryStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.stats
}

// GetByKind returns all records of the given kind
func (r *registry) GetByKind(kind ResourceKind) []*UnitRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var records []*UnitRecord
	for _, record := range r.units {
		if record.Kind == kind {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SourceURL < records[j].SourceURL })
	return records
}
