package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/farescout/models"
)

// entry holds a cached outcome with its creation timestamp.
type entry struct {
	outcome   *models.ScrapeOutcome
	createdAt time.Time
}

// Cache is a simple in-memory cache for search outcomes.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict expired entries
// (older than 1 hour) until Close is called.
func New(maxEntries int) *Cache {
	c := newCache(maxEntries, time.Now)
	go c.cleanupLoop()
	return c
}

func newCache(maxEntries int, now func() time.Time) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        now,
		done:       make(chan struct{}),
	}
}

// Key generates a cache key from everything that shapes a search outcome.
// Destination order matters: it is the order the engine visits them in.
func Key(req *models.SearchRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%g|%d|%d",
		strings.ToLower(strings.TrimSpace(req.Origin)),
		req.DepartureDate,
		req.ReturnDate,
		req.MaxBudget,
		req.MaxResults,
		req.MaxDuration.Milliseconds(),
	)
	for _, d := range req.Destinations {
		fmt.Fprintf(h, "|%s/%s",
			strings.ToLower(strings.TrimSpace(d.City)),
			strings.ToUpper(d.IATACode),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached outcome if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
// Returns the outcome and whether it was a cache hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ScrapeOutcome, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}

	return e.outcome, true
}

// Set stores an outcome in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, outcome *models.ScrapeOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		outcome:   outcome,
		createdAt: c.now(),
	}
}

// Len reports the number of cached outcomes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictBefore(c.now().Add(-1 * time.Hour))
		}
	}
}

func (c *Cache) evictBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
