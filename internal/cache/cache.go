package cache

import (
	"sync"

	"signal-feed/internal/fetcher"
)

// Snapshot is a point-in-time copy of every cached quote keyed by provider symbol.
type Snapshot map[string]fetcher.Quote

// PriceCache holds the last known quote per provider symbol.
//
// The poller is the only writer; API handlers and the broadcaster read concurrently.
// Entries never expire, so a quote may be arbitrarily old if its upstream stops answering.
type PriceCache struct {
	mu     sync.RWMutex
	quotes map[string]fetcher.Quote
}

// New returns an empty cache.
func New() *PriceCache {
	return &PriceCache{quotes: make(map[string]fetcher.Quote)}
}

// Update overwrites the quote for symbol.
func (c *PriceCache) Update(symbol string, q fetcher.Quote) {
	c.mu.Lock()
	c.quotes[symbol] = q
	c.mu.Unlock()
}

// Get returns the cached quote for symbol.
func (c *PriceCache) Get(symbol string) (fetcher.Quote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[symbol]
	c.mu.RUnlock()
	return q, ok
}

// Snapshot copies all entries.
func (c *PriceCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Snapshot, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}

// Len reports the number of cached symbols.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
