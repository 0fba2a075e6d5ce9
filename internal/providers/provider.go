// Package providers implements the typed account providers: each watches a
// fixed set of cache keys and republishes a strongly-typed decoded value
// whenever any of them change.
//
// Grounded on original_source's providers/orderbook_provider.rs and
// providers/open_orders_provider.rs, generalized into a single generic
// Provider[T] per spec.md §9's polymorphism note ("An implementer may
// express this as a single generic/parameterised provider").
package providers

import (
	"context"
	"log/slog"
	"sync"

	"mm-engine/internal/broadcast"
	"mm-engine/internal/cache"
	"mm-engine/pkg/types"
)

// Decoder produces a T from the current cache contents. Implementations
// read only the keys they were constructed to watch.
type Decoder[T any] func(c *cache.AccountsCache) (T, bool, error)

// Provider watches a fixed key set in an AccountsCache and republishes a
// decoded T on every relevant update.
type Provider[T any] struct {
	cache     *cache.AccountsCache
	watch     map[types.Pubkey]struct{}
	decode    Decoder[T]
	bus       *broadcast.Bus[T]
	logger    *slog.Logger

	mu        sync.RWMutex
	latest    T
	hasLatest bool
}

// New builds a Provider watching watchKeys, decoding with decode.
func New[T any](c *cache.AccountsCache, watchKeys []types.Pubkey, decode Decoder[T], logger *slog.Logger) *Provider[T] {
	watch := make(map[types.Pubkey]struct{}, len(watchKeys))
	for _, k := range watchKeys {
		watch[k] = struct{}{}
	}
	return &Provider[T]{
		cache:  c,
		watch:  watch,
		decode: decode,
		bus:    broadcast.NewBus[T](),
		logger: logger,
	}
}

// Subscribe registers for decoded-value notifications.
func (p *Provider[T]) Subscribe(capacity int) (<-chan T, func()) {
	return p.bus.Subscribe(capacity)
}

// Latest returns the most recently decoded value, if any.
func (p *Provider[T]) Latest() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

// Start subscribes to the cache and republishes decoded values for this
// provider's watched keys until ctx is cancelled. Runs a decode attempt
// once up front so Latest() is populated before the first cache update.
func (p *Provider[T]) Start(ctx context.Context) {
	p.tryDecode()

	keyCh, unsub := p.cache.Subscribe(0)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-keyCh:
			if !ok {
				return
			}
			if _, watched := p.watch[key]; !watched {
				continue
			}
			p.tryDecode()
		}
	}
}

func (p *Provider[T]) tryDecode() {
	value, ok, err := p.decode(p.cache)
	if err != nil {
		p.logger.Warn("provider decode failed", "error", err)
		return
	}
	if !ok {
		return
	}

	p.mu.Lock()
	p.latest, p.hasLatest = value, true
	p.mu.Unlock()

	p.bus.Publish(value)
}
