// Package chainmeta periodically refreshes the recent blockhash (nonce)
// and slot the order manager needs to submit fresh transactions.
//
// Grounded on original_source's chainmetaservice.rs: ChainMetaService holds
// the latest blockhash behind an RWMutex, refreshed on a fixed interval by
// a background loop; a zero blockhash means "not yet ready", matching
// spec.md §4.4/§7's "stale nonce" failure mode.
package chainmeta

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mm-engine/internal/venue"
)

// Meta is the latest known chain metadata.
type Meta struct {
	Blockhash [32]byte
	Slot      uint64
	UpdatedAt time.Time
}

// IsReady reports whether a blockhash has been observed yet.
func (m Meta) IsReady() bool {
	return m.Blockhash != [32]byte{}
}

// StaleSince reports how long it has been since the last successful
// refresh, used by the watchdog to detect a stuck feed.
func (m Meta) StaleSince() time.Duration {
	if m.UpdatedAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(m.UpdatedAt)
}

// Service refreshes Meta on a fixed interval in the background.
type Service struct {
	client   *venue.Client
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	meta Meta
}

// NewService builds a Service. Call LoadInitial before Start so the first
// reconciliation tick doesn't see a not-ready blockhash.
func NewService(client *venue.Client, interval time.Duration, logger *slog.Logger) *Service {
	return &Service{
		client:   client,
		interval: interval,
		logger:   logger.With("component", "chainmeta"),
	}
}

// LoadInitial fetches the blockhash once, synchronously, before Start.
func (s *Service) LoadInitial(ctx context.Context) error {
	return s.refresh(ctx)
}

// Get returns the last known chain metadata.
func (s *Service) Get() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Start runs the refresh loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn("chain meta refresh failed", "error", err)
			}
		}
	}
}

func (s *Service) refresh(ctx context.Context) error {
	hash, err := s.client.GetLatestBlockhashWithCommitment(ctx, "confirmed")
	if err != nil {
		return err
	}
	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.meta = Meta{Blockhash: hash, Slot: slot, UpdatedAt: time.Now()}
	s.mu.Unlock()
	return nil
}
