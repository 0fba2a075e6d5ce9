// Package cache implements the accounts cache, safe for concurrent writers
// and readers: a keyed snapshot store that notifies subscribers of which key changed
// without carrying the payload itself.
//
// Grounded on the original bot's accounts_cache.rs: a DashMap-equivalent
// keyed by Pubkey, paired with a broadcast sender of just the key. Insert
// always overwrites regardless of the incoming slot (best-effort,
// non-monotonic consistency per the spec's design notes) and tolerates a
// failed broadcast — the cache entry is still updated even if no one is
// listening.
package cache

import (
	"sync"

	"mm-engine/internal/broadcast"
	"mm-engine/pkg/types"
)

// DefaultBusCapacity matches the original's broadcast channel size.
const DefaultBusCapacity = 65535

// AccountsCache stores the latest known snapshot of every watched account
// and publishes the key on every update.
type AccountsCache struct {
	mu      sync.RWMutex
	entries map[types.Pubkey]types.Account
	bus     *broadcast.Bus[types.Pubkey]
}

func New() *AccountsCache {
	return &AccountsCache{
		entries: make(map[types.Pubkey]types.Account),
		bus:     broadcast.NewBus[types.Pubkey](),
	}
}

// Insert overwrites the cache entry for key unconditionally and publishes
// the key to subscribers. A failed publish (no subscribers, or all full)
// is not an error — the insert itself always succeeds.
func (c *AccountsCache) Insert(key types.Pubkey, account types.Account) {
	c.mu.Lock()
	c.entries[key] = account
	c.mu.Unlock()

	c.bus.Publish(key)
}

// Get returns the current snapshot for key, if present.
func (c *AccountsCache) Get(key types.Pubkey) (types.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acc, ok := c.entries[key]
	return acc, ok
}

// Subscribe registers for key-change notifications. Capacity defaults to
// DefaultBusCapacity when capacity <= 0.
func (c *AccountsCache) Subscribe(capacity int) (<-chan types.Pubkey, func()) {
	if capacity <= 0 {
		capacity = DefaultBusCapacity
	}
	return c.bus.Subscribe(capacity)
}

// Len reports the number of cached entries.
func (c *AccountsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
