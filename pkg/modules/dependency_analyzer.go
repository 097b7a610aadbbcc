package modules

import (
	"sort"
	"sync"
)

// dependencyAnalyzer records the dependency edges discovered while resolving
// and the wait-for edges between transforms that are running right now
type dependencyAnalyzer struct {
	discovered map[string]bool                // Source URLs seen
	depGraph   map[string]map[string]struct{} // Module -> dependencies
	depCounts  map[string]int                 // Module -> import count
	waits      map[string]map[string]int      // Waiting transform -> awaited transform -> waiters
	mutex      sync.RWMutex
}

// DependencyStats contains statistics about dependency analysis
type DependencyStats struct {
	TotalDiscovered   int      // Total modules discovered
	TotalDependencies int      // Total dependency relationships
	MaxDepth          int      // Maximum dependency depth
	CircularDeps      []string // Modules involved in circular dependencies
}

// Edge is a dependency from a module to a resource it imports
type Edge struct {
	From string
	To   string
}

func newDependencyAnalyzer() *dependencyAnalyzer {
	return &dependencyAnalyzer{
		discovered: make(map[string]bool),
		depGraph:   make(map[string]map[string]struct{}),
		depCounts:  make(map[string]int),
		waits:      make(map[string]map[string]int),
	}
}

// MarkDiscovered marks a module as discovered
func (da *dependencyAnalyzer) MarkDiscovered(sourceURL string) {
	da.mutex.Lock()
	defer da.mutex.Unlock()

	da.discovered[sourceURL] = true
}

// AddDependency adds a dependency relationship. Repeated edges are ignored.
func (da *dependencyAnalyzer) AddDependency(from, to string) {
	da.mutex.Lock()
	defer da.mutex.Unlock()

	da.discovered[from] = true
	da.discovered[to] = true
	deps := da.depGraph[from]
	if deps == nil {
		deps = make(map[string]struct{})
		da.depGraph[from] = deps
	}
	if _, exists := deps[to]; exists {
		return
	}
	deps[to] = struct{}{}
	da.depCounts[to]++
}

// GetDependencies returns the dependencies of a module in sorted order
func (da *dependencyAnalyzer) GetDependencies(sourceURL string) []string {
	da.mutex.RLock()
	defer da.mutex.RUnlock()

	return sortedKeys(da.depGraph[sourceURL])
}

// GetImportCount returns how many modules import the given one
func (da *dependencyAnalyzer) GetImportCount(sourceURL string) int {
	da.mutex.RLock()
	defer da.mutex.RUnlock()

	return da.depCounts[sourceURL]
}

// Edges returns every recorded dependency edge, sorted
func (da *dependencyAnalyzer) Edges() []Edge {
	da.mutex.RLock()
	defer da.mutex.RUnlock()

	var edges []Edge
	for from, deps := range da.depGraph {
		for to := range deps {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// GetTopologicalOrder returns modules with dependencies before their
// dependents. Modules on a cycle cannot be ordered and are returned
// separately in sorted order.
func (da *dependencyAnalyzer) GetTopologicalOrder() (order []string, cyclic []string) {
	da.mutex.RLock()
	defer da.mutex.RUnlock()

	remaining := make(map[string]int, len(da.discovered)) // module -> unprocessed dependencies
	dependents := make(map[string][]string)
	for m := range da.discovered {
		remaining[m] = 0
		for dep := range da.depGraph[m] {
			if !da.discovered[dep] {
				continue
			}
			remaining[m]++
			dependents[dep] = append(dependents[dep], m)
		}
	}

	// Kahn's algorithm, starting from the leaves
	var queue []string
	for m, n := range remaining {
		if n == 0 {
			queue = append(queue, m)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		next := dependents[current]
		sort.Strings(next)
		for _, dependent := range next {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(da.discovered) {
		for m, n := range remaining {
			if n > 0 {
				cyclic = append(cyclic, m)
			}
		}
		sort.Strings(cyclic)
	}
	return order, cyclic
}

// GetDependencyDepth returns the length of the longest dependency chain below a module
func (da *dependencyAnalyzer) GetDependencyDepth(sourceURL string) int {
	da.mutex.RLock()
	defer da.mutex.RUnlock()

	return da.calculateDepth(sourceURL, make(map[string]bool))
}

func (da *dependencyAnalyzer) calculateDepth(sourceURL string, visiting map[string]bool) int {
	if visiting[sourceURL] {
		return 0
	}
	visiting[sourceURL] = true
	defer func() { visiting[sourceURL] = false }()

	maxDepth := -1
	for dep := range da.depGraph[sourceURL] {
		if d := da.calculateDepth(dep, visiting); d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth + 1
}

// GetStats returns dependency analysis statistics
func (da *dependencyAnalyzer) GetStats() DependencyStats {
	_, cyclic := da.GetTopologicalOrder()

	da.mutex.RLock()
	defer da.mutex.RUnlock()

	stats := DependencyStats{TotalDiscovered: len(da.discovered), CircularDeps: cyclic}
	for m, deps := range da.depGraph {
		stats.TotalDependencies += len(deps)
		if d := da.calculateDepth(m, make(map[string]bool)); d > stats.MaxDepth {
			stats.MaxDepth = d
		}
	}
	return stats
}

// beginWait records that the transform of from is about to block on the
// transform of to. It refuses, returning false, when to is already waiting
// (directly or transitively) on from, since blocking would never end.
func (da *dependencyAnalyzer) beginWait(from, to string) bool {
	da.mutex.Lock()
	defer da.mutex.Unlock()

	if da.waitsFor(to, from, make(map[string]bool)) {
		return false
	}
	targets := da.waits[from]
	if targets == nil {
		targets = make(map[string]int)
		da.waits[from] = targets
	}
	targets[to]++
	return true
}

// endWait removes an edge added by beginWait
func (da *dependencyAnalyzer) endWait(from, to string) {
	da.mutex.Lock()
	defer da.mutex.Unlock()

	targets := da.waits[from]
	if targets == nil {
		return
	}
	if targets[to]--; targets[to] <= 0 {
		delete(targets, to)
	}
	if len(targets) == 0 {
		delete(da.waits, from)
	}
}

// waitsFor reports whether from reaches to over wait edges. A transform
// always reaches itself.
func (da *dependencyAnalyzer) waitsFor(from, to string, seen map[string]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for next := range da.waits[from] {
		if da.waitsFor(next, to, seen) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
