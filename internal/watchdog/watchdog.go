// Package watchdog is a supplemental circuit breaker that halts quoting and
// cancels resting orders when the agent's view of the chain looks stuck or
// unreasonable. It has no spec.md module of its own: it is the teacher's
// internal/risk.Manager adapted from USD-exposure/price-shock limits to the
// failure modes this venue actually exposes — a stuck chain-meta feed, a
// run of submit failures, or a computed spread that has drifted outside any
// sane bound.
//
// Grounded on internal/risk/manager.go's shape: a ticker-driven background
// loop, a buffered kill channel the supervisor reads from, and a cooldown
// window after a trip so the agent doesn't flap.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mm-engine/internal/chainmeta"
	"mm-engine/internal/config"
)

// KillSignal tells the supervisor to cancel all resting orders and pause
// quoting until the cooldown clears.
type KillSignal struct {
	Reason string
	At     time.Time
}

// checkInterval is how often the watchdog re-evaluates chain-meta
// staleness even when nothing else reports in.
const checkInterval = 1 * time.Second

// cooldown is how long quoting stays paused after a trip.
const cooldown = 10 * time.Second

// Watchdog monitors chain-meta health, submit outcomes, and computed
// spreads, tripping a kill signal when any check fails.
type Watchdog struct {
	cfg       config.WatchdogConfig
	chainMeta *chainmeta.Service
	logger    *slog.Logger

	mu               sync.Mutex
	consecutiveFails int
	tripped          bool
	trippedUntil     time.Time

	killCh chan KillSignal
}

// New builds a Watchdog. A disabled watchdog (cfg.Enabled == false) never
// trips and its Run returns at once, so the supervisor can wire it
// unconditionally.
func New(cfg config.WatchdogConfig, cm *chainmeta.Service, logger *slog.Logger) *Watchdog {
	return &Watchdog{
		cfg:       cfg,
		chainMeta: cm,
		logger:    logger.With("component", "watchdog"),
		killCh:    make(chan KillSignal, 4),
	}
}

// KillCh returns the channel the supervisor reads kill signals from.
func (w *Watchdog) KillCh() <-chan KillSignal {
	return w.killCh
}

// Run drives the periodic chain-meta staleness check until ctx is
// cancelled. ReportSubmitResult and CheckSpread are called by the worker
// loop on its own cadence and trip independently of this ticker.
func (w *Watchdog) Run(ctx context.Context) {
	if !w.cfg.Enabled {
		return
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkStaleness()
			w.clearExpiredTrip()
		}
	}
}

func (w *Watchdog) checkStaleness() {
	staleness := w.chainMeta.Get().StaleSince()
	if staleness <= w.cfg.MaxChainMetaStaleness {
		return
	}
	w.trip("chain meta stale for " + staleness.String())
}

// ReportSubmitResult updates the consecutive-failure counter. A success
// resets the streak; a failure trips the watchdog once the configured
// threshold is reached.
func (w *Watchdog) ReportSubmitResult(err error) {
	if !w.cfg.Enabled {
		return
	}

	w.mu.Lock()
	if err == nil {
		w.consecutiveFails = 0
		w.mu.Unlock()
		return
	}
	w.consecutiveFails++
	fails := w.consecutiveFails
	w.mu.Unlock()

	if fails >= w.cfg.MaxConsecutiveSubmitFail {
		w.trip("too many consecutive submit failures")
	}
}

// CheckSpread trips the watchdog if the computed ask is not strictly above
// the computed bid, which happens with a zero configured spread, a corrupt
// oracle read or an overflowed spread calculation — never a condition the
// agent should quote through.
func (w *Watchdog) CheckSpread(bidPrice, askPrice uint64) {
	if !w.cfg.Enabled {
		return
	}
	if askPrice > bidPrice {
		return
	}
	w.trip("computed ask price does not exceed bid price")
}

// Tripped reports whether the watchdog is currently in its cooldown
// window, during which the worker loop should skip quoting.
func (w *Watchdog) Tripped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tripped
}

func (w *Watchdog) trip(reason string) {
	w.mu.Lock()
	if w.tripped {
		w.mu.Unlock()
		return
	}
	w.tripped = true
	w.trippedUntil = time.Now().Add(cooldown)
	w.mu.Unlock()

	w.logger.Warn("watchdog tripped", "reason", reason)

	select {
	case w.killCh <- KillSignal{Reason: reason, At: time.Now()}:
	default:
		w.logger.Warn("kill channel full, dropping signal")
	}
}

func (w *Watchdog) clearExpiredTrip() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tripped && time.Now().After(w.trippedUntil) {
		w.tripped = false
		w.consecutiveFails = 0
		w.logger.Info("watchdog cooldown expired, resuming quoting")
	}
}
