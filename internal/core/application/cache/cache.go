// Package cache keeps read snapshots of the account stores. Entries are
// dropped on every structural event and on explicit invalidation.
package cache

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tdex-network/walletdb/internal/core/domain"
	"github.com/tdex-network/walletdb/internal/core/ports"
)

const keySeparator = "/"

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletdb",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Number of reads served by the read cache.",
	}, []string{"store"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletdb",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Number of reads that hit the database.",
	}, []string{"store"})
)

// Cache is a snapshot map keyed by store and an optional sub key.
type Cache struct {
	lock    sync.RWMutex
	entries map[string]interface{}
	// generation is bumped on every invalidation so that a load racing with
	// it does not store a stale snapshot.
	generation uint64

	unsubscribe func()
}

// New returns a Cache. If bus is not nil the cache is cleared on every
// structural event.
func New(bus ports.EventBus) *Cache {
	c := &Cache{entries: make(map[string]interface{})}
	if bus != nil {
		c.unsubscribe = bus.Subscribe(func(e domain.Event) {
			if e.IsStructural() {
				c.InvalidateAll()
			}
		})
	}
	return c
}

// Key builds the cache key of a store snapshot.
func Key(store domain.StoreName, subKeys ...string) string {
	return strings.Join(append([]string{string(store)}, subKeys...), keySeparator)
}

// GetOrLoad returns the cached value of key or loads and caches it. The
// returned value is shared and must not be modified.
func GetOrLoad[T any](
	c *Cache, store domain.StoreName, key string, load func() (T, error),
) (T, error) {
	c.lock.RLock()
	v, ok := c.entries[key]
	generation := c.generation
	c.lock.RUnlock()

	if ok {
		if value, ok := v.(T); ok {
			cacheHits.WithLabelValues(string(store)).Inc()
			return value, nil
		}
	}
	cacheMisses.WithLabelValues(string(store)).Inc()

	value, err := load()
	if err != nil {
		return value, err
	}

	c.lock.Lock()
	if c.generation == generation {
		c.entries[key] = value
	}
	c.lock.Unlock()
	return value, nil
}

// Invalidate drops the snapshots of the given stores.
func (c *Cache) Invalidate(stores ...domain.StoreName) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.generation++
	for key := range c.entries {
		for _, store := range stores {
			if key == string(store) || strings.HasPrefix(key, string(store)+keySeparator) {
				delete(c.entries, key)
				break
			}
		}
	}
}

func (c *Cache) InvalidateAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.generation++
	c.entries = make(map[string]interface{})
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

// Close detaches the cache from the event bus.
func (c *Cache) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
