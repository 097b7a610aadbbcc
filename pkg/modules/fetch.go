package modules

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	merrors "moduletsx/pkg/errors"
)

// fetchChain tries fetchers in priority order and bounds concurrent fetches
type fetchChain struct {
	mutex    sync.RWMutex
	fetchers []Fetcher
	limit    *semaphore.Weighted
}

func newFetchChain(maxConcurrent int, fetchers ...Fetcher) *fetchChain {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU() * 4
	}
	c := &fetchChain{limit: semaphore.NewWeighted(int64(maxConcurrent))}
	for _, f := range fetchers {
		c.add(f)
	}
	return c
}

func (c *fetchChain) add(f Fetcher) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.fetchers = append(c.fetchers, f)
	// Sort fetchers by priority (lower = higher priority)
	sort.SliceStable(c.fetchers, func(i, j int) bool {
		return c.fetchers[i].Priority() < c.fetchers[j].Priority()
	})
}

func (c *fetchChain) pick(url string) Fetcher {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, f := range c.fetchers {
		if f.CanFetch(url) {
			return f
		}
	}
	return nil
}

// Fetch runs the first fetcher that accepts url while holding one slot of the limiter
func (c *fetchChain) Fetch(ctx context.Context, url string) (string, error) {
	f := c.pick(url)
	if f == nil {
		return "", &merrors.NetworkError{URL: url, Msg: "no fetcher accepts this URL"}
	}

	if err := c.limit.Acquire(ctx, 1); err != nil {
		return "", (&merrors.NetworkError{URL: url, Msg: "canceled while waiting to fetch"}).CausedBy(err)
	}
	defer c.limit.Release(1)

	return f.Fetch(ctx, url)
}
