// Package worker runs the per-market tick loop: read the latest inventory
// and market state from the typed providers, compute the target quote, and
// hand it to the order manager to reconcile against the resting book.
//
// Grounded on the teacher's strategy.Maker.Run (a ticker-driven select loop
// that reacts to fresh state and recomputes a quote every RefreshInterval)
// and on internal/engine.go's per-market goroutine lifecycle (ctx/cancel,
// WaitGroup-tracked Run).
package worker

import (
	"context"
	"log/slog"
	"time"

	"mm-engine/internal/inventory"
	"mm-engine/internal/ordermanager"
	"mm-engine/internal/providers"
	"mm-engine/internal/watchdog"
	"mm-engine/pkg/types"
)

// Worker drives one market's quote-and-reconcile cycle.
type Worker struct {
	market string

	orderBook  *providers.Provider[*types.OrderBook]
	openOrders *providers.Provider[types.OpenOrders]
	user       *providers.Provider[providers.UserState]
	group      *providers.Provider[providers.GroupState]

	inventoryCfg inventory.Config
	baseDecimals uint8
	spreadBps    uint8

	manager  *ordermanager.Manager
	watchdog *watchdog.Watchdog

	tick   time.Duration
	logger *slog.Logger
}

// Config bundles the per-market tuning a Worker needs, independent of the
// on-disk config shape so this package stays decoupled from viper.
type Config struct {
	Market       string
	InventoryCfg inventory.Config
	BaseDecimals uint8
	SpreadBps    uint8
	Tick         time.Duration
}

// New builds a Worker wired to its four typed providers, the order manager
// for its market, and the shared watchdog.
func New(
	cfg Config,
	orderBook *providers.Provider[*types.OrderBook],
	openOrders *providers.Provider[types.OpenOrders],
	user *providers.Provider[providers.UserState],
	group *providers.Provider[providers.GroupState],
	manager *ordermanager.Manager,
	wd *watchdog.Watchdog,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		market:       cfg.Market,
		orderBook:    orderBook,
		openOrders:   openOrders,
		user:         user,
		group:        group,
		inventoryCfg: cfg.InventoryCfg,
		baseDecimals: cfg.BaseDecimals,
		spreadBps:    cfg.SpreadBps,
		manager:      manager,
		watchdog:     wd,
		tick:         cfg.Tick,
		logger:       logger.With("component", "worker", "market", cfg.Market),
	}
}

// Run ticks until ctx is cancelled, recomputing and reconciling the quote
// on every tick. A tick is skipped outright, rather than reconciled with a
// stale or zero quote, whenever any upstream provider hasn't produced a
// value yet or the watchdog is in its cooldown window.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileOnce(ctx)
		}
	}
}

func (w *Worker) reconcileOnce(ctx context.Context) {
	if w.watchdog.Tripped() {
		return
	}

	ob, ok := w.orderBook.Latest()
	if !ok {
		w.logger.Debug("skipping tick, no order book yet")
		return
	}
	oo, ok := w.openOrders.Latest()
	if !ok {
		w.logger.Debug("skipping tick, no open orders yet")
		return
	}
	user, ok := w.user.Latest()
	if !ok {
		w.logger.Debug("skipping tick, no user state yet")
		return
	}
	group, ok := w.group.Latest()
	if !ok {
		w.logger.Debug("skipping tick, no group state yet")
		return
	}

	delta := inventory.Delta(user.DepositsNative, user.BorrowsNative, w.baseDecimals)
	qv := inventory.GetQuoteVolumes(delta, w.inventoryCfg)
	qp := inventory.GetSpread(group.OraclePrice, w.spreadBps)

	w.watchdog.CheckSpread(qp.BidPrice, qp.AskPrice)
	if w.watchdog.Tripped() {
		return
	}

	err := w.manager.Reconcile(ctx, ob, oo, qv, qp)
	w.watchdog.ReportSubmitResult(err)
	if err != nil {
		w.logger.Warn("reconcile failed", "error", err)
	}
}
