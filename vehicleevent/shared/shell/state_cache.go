package shell

import (
	"sync"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// StateCache keeps the last known (state, version) per aggregate id.
// The Runtime only uses it to skip replaying the prefix of a stream; it always catches up from the log.
type StateCache[S any] interface {
	Get(aggregateID string) (S, eventstore.SequenceNumberUint, bool)
	Put(aggregateID string, state S, version eventstore.SequenceNumberUint)
	Invalidate(aggregateID string)
}

type cachedState[S any] struct {
	state   S
	version eventstore.SequenceNumberUint
}

// MemoryStateCache is an unbounded, mutex-guarded StateCache.
type MemoryStateCache[S any] struct {
	mu      sync.RWMutex
	entries map[string]cachedState[S]
}

// NewMemoryStateCache creates an empty MemoryStateCache.
func NewMemoryStateCache[S any]() *MemoryStateCache[S] {
	return &MemoryStateCache[S]{entries: make(map[string]cachedState[S])}
}

// Get returns the cached state and version of aggregateID.
func (c *MemoryStateCache[S]) Get(aggregateID string) (S, eventstore.SequenceNumberUint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[aggregateID]

	return entry.state, entry.version, ok
}

// Put stores state at version unless a newer version is already cached.
func (c *MemoryStateCache[S]) Put(aggregateID string, state S, version eventstore.SequenceNumberUint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[aggregateID]; ok && existing.version > version {
		return
	}

	c.entries[aggregateID] = cachedState[S]{state: state, version: version}
}

// Invalidate drops the entry of aggregateID.
func (c *MemoryStateCache[S]) Invalidate(aggregateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, aggregateID)
}

// Len returns the number of cached aggregates.
func (c *MemoryStateCache[S]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
