package admission

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultResolvedCap bounds the per-flight resolved map. Route repetition
// counts are never evicted; only the flight-instance index is bounded.
const defaultResolvedCap = 4096

// RouteCache tracks how often each route has been resolved and which flight
// instances already have an answer from earlier in this run.
//
// Repetition counts are monotonic for the life of a route key and are never
// removed: route-key cardinality is bounded by real-world airport pairs, not
// by flight count.
type RouteCache struct {
	mu     sync.RWMutex
	counts map[RouteKey]*routeEntry

	// resolved maps flight identifier -> route key for flights whose route
	// was fetched earlier in this run. LRU-bounded; a flight only needs its
	// entry while the detection loop may re-encounter it.
	resolved *lru.Cache[string, RouteKey]
}

type routeEntry struct {
	count    int
	lastSeen time.Time
}

// NewRouteCache creates an empty RouteCache.
func NewRouteCache() *RouteCache {
	resolved, _ := lru.New[string, RouteKey](defaultResolvedCap)
	return &RouteCache{
		counts:   make(map[RouteKey]*routeEntry),
		resolved: resolved,
	}
}

// Lookup returns the number of times the route has been resolved.
func (c *RouteCache) Lookup(key RouteKey) int {
	if key == "" {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.counts[key]
	if !ok {
		return 0
	}
	return e.count
}

// Record increments the route's occurrence count, creating the entry on
// first sighting.
func (c *RouteCache) Record(key RouteKey) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.counts[key]
	if !ok {
		e = &routeEntry{}
		c.counts[key] = e
	}
	e.count++
	e.lastSeen = time.Now()
}

// LastSeen returns when the route was last sighted, or the zero time.
func (c *RouteCache) LastSeen(key RouteKey) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.counts[key]; ok {
		return e.lastSeen
	}
	return time.Time{}
}

// ResolvedRouteFor returns the route already fetched for this specific
// flight instance, if any. A hit means the caller should reuse the cached
// route instead of spending any provider call.
func (c *RouteCache) ResolvedRouteFor(flightID string) (RouteKey, bool) {
	if flightID == "" {
		return "", false
	}
	return c.resolved.Get(flightID)
}

// recordResolution stores the fetched route for a flight instance and bumps
// the route's repetition count.
func (c *RouteCache) recordResolution(flightID string, key RouteKey) {
	if flightID != "" && key != "" {
		c.resolved.Add(flightID, key)
	}
	c.Record(key)
}

// Len returns the number of distinct route keys seen.
func (c *RouteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.counts)
}
