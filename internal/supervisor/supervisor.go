// Package supervisor wires every subsystem together and owns the process
// lifecycle: build, start, wait for a terminal event, cancel-all, stop.
//
// Grounded on the teacher's internal/engine.go (New/Start/Stop, a
// context+WaitGroup-tracked set of background goroutines, a safety-net
// cancel-all on shutdown) and on spec.md §4.9's startup sequence.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mm-engine/internal/bootstrap"
	"mm-engine/internal/cache"
	"mm-engine/internal/chainmeta"
	"mm-engine/internal/config"
	"mm-engine/internal/ingest"
	"mm-engine/internal/inventory"
	"mm-engine/internal/mmerr"
	"mm-engine/internal/ordermanager"
	"mm-engine/internal/providers"
	"mm-engine/internal/signer"
	"mm-engine/internal/venue"
	"mm-engine/internal/watchdog"
	"mm-engine/internal/worker"
	"mm-engine/pkg/types"
)

// Supervisor owns every long-running subsystem for one market.
type Supervisor struct {
	cfg    config.Config
	logger *slog.Logger

	client    *venue.Client
	chainMeta *chainmeta.Service
	cache     *cache.AccountsCache
	ingest    *ingest.Service
	pushFeed  *venue.PushFeed
	manager   *ordermanager.Manager
	watchdog  *watchdog.Watchdog
	worker    *worker.Worker

	openOrdersProvider *providers.Provider[types.OpenOrders]
	orderBookProvider  *providers.Provider[*types.OrderBook]
	userProvider       *providers.Provider[providers.UserState]
	groupProvider      *providers.Provider[providers.GroupState]

	openOrdersKey types.Pubkey

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New runs the full startup sequence from spec.md §4.9: resolve market
// metadata, derive the open-orders key, register the polling set, build
// the four typed providers, and wire the inventory/order manager/worker.
func New(cfg config.Config, cluster config.ClusterConfigFile, logger *slog.Logger) (*Supervisor, error) {
	group, ok := cluster.Group(cfg.Group)
	if !ok {
		return nil, mmerr.New(mmerr.KindFetchingGroup, fmt.Errorf("group %q not found in cluster config", cfg.Group))
	}
	marketCfg, ok := group.GroupMarket(cfg.Market.Name)
	if !ok {
		return nil, mmerr.New(mmerr.KindFetchingMarket, fmt.Errorf("market %q not found in group %q", cfg.Market.Name, cfg.Group))
	}

	rpc := cluster.ClusterFor(group.Cluster)

	s, err := signer.Load(cfg.KeypairPath)
	if err != nil {
		return nil, mmerr.New(mmerr.KindKeypairLoad, err)
	}

	client := venue.NewClient(rpc.RPCURL, cfg.DryRun, logger)

	marketKey, err := types.PubkeyFromHex(marketCfg.Address)
	if err != nil {
		return nil, mmerr.New(mmerr.KindFetchingMarket, err)
	}
	bidsKey, err := types.PubkeyFromHex(marketCfg.Bids)
	if err != nil {
		return nil, mmerr.New(mmerr.KindFetchingMarket, err)
	}
	asksKey, err := types.PubkeyFromHex(marketCfg.Asks)
	if err != nil {
		return nil, mmerr.New(mmerr.KindFetchingMarket, err)
	}
	groupKey, err := types.PubkeyFromHex(group.Address)
	if err != nil {
		return nil, mmerr.New(mmerr.KindFetchingGroup, err)
	}
	programID, err := types.PubkeyFromHex(group.ProgramID)
	if err != nil {
		return nil, mmerr.New(mmerr.KindFetchingGroup, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := bootstrap.ResolveMarket(ctx, client, marketKey); err != nil {
		cancel()
		return nil, err
	}
	openOrdersKey := bootstrap.DeriveOpenOrdersKey(marketKey, s.Pubkey(), programID)

	c := cache.New()
	chainMeta := chainmeta.NewService(client, cfg.Refresh.ChainMetaInterval, logger)
	if err := chainMeta.LoadInitial(ctx); err != nil {
		cancel()
		return nil, mmerr.New(mmerr.KindInitServices, err)
	}

	pollSet := []types.Pubkey{s.Pubkey(), groupKey, openOrdersKey, marketKey, bidsKey, asksKey}
	ingestSvc := ingest.NewService(client, c, pollSet, cfg.Refresh.IngestInterval, logger)

	var pushFeed *venue.PushFeed
	if rpc.PubsubURL != "" {
		pushFeed = venue.NewPushFeed(rpc.PubsubURL, logger)
	}

	orderBookProvider := providers.NewOrderBookProvider(c, marketKey, bidsKey, asksKey, marketCfg.PcLotSize, marketCfg.CoinLotSize, logger)
	openOrdersProvider := providers.NewOpenOrdersProvider(c, openOrdersKey, s.Pubkey(), logger)
	userProvider := providers.NewUserProvider(c, s.Pubkey(), s.Pubkey(), logger)
	groupProvider := providers.NewGroupProvider(c, groupKey, logger)

	manager := ordermanager.New(client, chainMeta, s, marketKey, openOrdersKey, programID,
		ordermanager.Config{MaxMessageBytes: cfg.OrderManager.MaxMessageBytes, MaxInflightTracked: cfg.OrderManager.MaxInflightTracked}, logger)

	wd := watchdog.New(cfg.Watchdog, chainMeta, logger)

	w := worker.New(worker.Config{
		Market: cfg.Market.Name,
		InventoryCfg: inventory.Config{
			MaxQuote:   cfg.InventoryManager.MaxQuote,
			ShapeNum:   cfg.InventoryManager.ShapeNum,
			ShapeDenom: cfg.InventoryManager.ShapeDenom,
			Spread:     cfg.InventoryManager.Spread,
		},
		BaseDecimals: marketCfg.BaseDecimals,
		SpreadBps:    cfg.InventoryManager.Spread,
		Tick:         cfg.Refresh.WorkerTick,
	}, orderBookProvider, openOrdersProvider, userProvider, groupProvider, manager, wd, logger)

	return &Supervisor{
		cfg:                cfg,
		logger:             logger.With("component", "supervisor"),
		client:             client,
		chainMeta:          chainMeta,
		cache:              c,
		ingest:             ingestSvc,
		pushFeed:           pushFeed,
		manager:            manager,
		watchdog:           wd,
		worker:             w,
		openOrdersProvider: openOrdersProvider,
		orderBookProvider:  orderBookProvider,
		userProvider:       userProvider,
		groupProvider:      groupProvider,
		openOrdersKey:      openOrdersKey,
		ctx:                ctx,
		cancel:             cancel,
	}, nil
}

// spawn runs fn in a tracked goroutine.
func (s *Supervisor) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Start spawns every background subsystem: the chain-meta refresh loop,
// the account ingest service, the four providers, the watchdog, a handler
// that cancels all resting orders on each watchdog kill signal, and the
// worker's reconcile tick.
func (s *Supervisor) Start() {
	s.spawn(s.chainMeta.Start)
	s.spawn(s.ingest.Start)
	s.spawn(s.orderBookProvider.Start)
	s.spawn(s.openOrdersProvider.Start)
	s.spawn(s.userProvider.Start)
	s.spawn(s.groupProvider.Start)
	s.spawn(s.watchdog.Run)
	s.spawn(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-s.watchdog.KillCh():
				s.logger.Warn("watchdog kill signal, cancelling all orders", "reason", sig.Reason)
				if oo, ok := s.openOrdersProvider.Latest(); ok {
					if err := s.manager.CancelAll(ctx, oo); err != nil {
						s.logger.Error("failed to cancel all orders on watchdog kill", "error", err)
					}
				}
			}
		}
	})
	s.spawn(s.worker.Run)

	if s.pushFeed != nil {
		s.pushFeed.Start(s.ctx)
		s.spawn(s.forwardPushHints)
	}
}

// forwardPushHints applies push-feed account-change hints by immediately
// re-fetching that single key, short-cutting the next scheduled ingest
// poll for it.
func (s *Supervisor) forwardPushHints(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-s.pushFeed.Hints():
			if !ok {
				return
			}
			s.ingest.RefreshNow(ctx, key)
		}
	}
}

// Stop broadcasts shutdown, cancels all resting orders as a safety net,
// and waits for every background goroutine to finish its current
// iteration and exit.
func (s *Supervisor) Stop() {
	s.logger.Info("shutting down")
	s.cancel()

	if s.pushFeed != nil {
		s.pushFeed.Close()
	}

	cancelCtx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	oo, ok := s.openOrdersProvider.Latest()
	if ok {
		if err := s.manager.CancelAll(cancelCtx, oo); err != nil {
			s.logger.Error("failed to cancel all orders on shutdown", "error", err)
		}
	}

	s.wg.Wait()
	s.logger.Info("shutdown complete")
}
