// mm is the market-making agent's entry point.
//
// Architecture:
//
//	main.go                    — entry point: loads both config files, starts the supervisor, waits for SIGINT/SIGTERM
//	internal/supervisor        — orchestrator: wires cache/providers/order manager/worker, manages lifecycle
//	internal/worker            — per-market tick loop: inventory → quote → reconcile
//	internal/ordermanager      — reconciles resting orders against the target quote
//	internal/inventory         — quote sizing and spread math from inventory delta
//	internal/providers         — typed account providers (order book, open orders, user, group)
//	internal/ingest            — periodic batched account refresh
//	internal/chainmeta         — blockhash/slot refresh for transaction submission
//	internal/cache             — keyed account snapshot store with a broadcast bus
//	internal/venue             — JSON-RPC client + push-notification feed for the remote venue
//	internal/signer            — keypair loading and signing
//	internal/watchdog          — supplemental circuit breaker (chain-meta staleness, submit failures, spread sanity)
//	internal/bootstrap         — one-shot market resolution + open-orders key derivation
//
// How it makes money:
//
//	The agent posts a bid below and an ask above a reference price derived
//	from an oracle feed, skewed by the account's current inventory delta —
//	the more imbalanced the position, the smaller the quote on the heavier
//	side. It never crosses the book to rebalance; it only posts.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mm-engine/internal/config"
	"mm-engine/internal/supervisor"
)

func main() {
	cfgPath := flag.String("config", "configs/config.json", "path to the MM config file")
	clusterPath := flag.String("cluster-config", "configs/clusters.json", "path to the cluster/group config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	cluster, err := config.LoadClusterConfig(*clusterPath)
	if err != nil {
		slog.Error("failed to load cluster config", "error", err, "path", *clusterPath)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	sup, err := supervisor.New(*cfg, *cluster, logger)
	if err != nil {
		logger.Error("failed to build supervisor", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real transactions will be submitted")
	}

	sup.Start()

	logger.Info("market maker started",
		"group", cfg.Group,
		"market", cfg.Market.Name,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	sup.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
