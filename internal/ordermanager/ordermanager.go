// Package ordermanager reconciles an order book against the desired
// bid/ask quote, submitting cancel-then-place instructions in one or more
// packed transactions.
//
// Grounded on original_source's market_maker/order_manager.rs in full:
// get_open_orders_with_qty's orderbook-join, get_stale_orders' staleness
// conditions, get_new_orders_ixs' ask-first-then-bid ordering, and
// submit_transactions' flush-before-add packing loop.
package ordermanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mm-engine/internal/chainmeta"
	"mm-engine/internal/signer"
	"mm-engine/internal/txbuilder"
	"mm-engine/internal/venue"
	"mm-engine/pkg/types"
)

// Config holds the reconciliation tuning this manager needs, decoupled
// from internal/config so this package doesn't depend on viper.
type Config struct {
	MaxMessageBytes    int
	MaxInflightTracked int
}

// Manager reconciles resting orders against a target quote.
type Manager struct {
	client    *venue.Client
	chainMeta *chainmeta.Service
	signer    *signer.Signer
	cfg       Config
	logger    *slog.Logger

	market      types.Pubkey
	openOrders  types.Pubkey
	programID   types.Pubkey

	mu            sync.Mutex
	clientOrderID uint64

	inflight InflightOrders
}

// New builds a Manager. clientOrderID starts at 1, matching the original's
// RwLock<u64> initialized to 1.
func New(client *venue.Client, cm *chainmeta.Service, s *signer.Signer, market, openOrders, programID types.Pubkey, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		client:        client,
		chainMeta:     cm,
		signer:        s,
		cfg:           cfg,
		logger:        logger.With("component", "order_manager"),
		market:        market,
		openOrders:    openOrders,
		programID:     programID,
		clientOrderID: 1,
		inflight:      newInflightOrders(cfg.MaxInflightTracked),
	}
}

func (m *Manager) nextClientOrderID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.clientOrderID
	m.clientOrderID++
	return id
}

// managedOrder pairs an open-orders slot with its resolved quantity from
// the order book, matching get_open_orders_with_qty. Slots whose order id
// no longer appears in the book are dropped rather than reported, per the
// original's get_order_book_line behavior.
type managedOrder struct {
	types.ManagedOrder
}

func getManagedOrders(oo types.OpenOrders, ob *types.OrderBook) []managedOrder {
	var out []managedOrder
	for _, slot := range oo.Slots {
		if !slot.Occupied {
			continue
		}
		side := slot.Side
		bookSide := ob.Asks
		if side == types.Bid {
			bookSide = ob.Bids
		}

		qty, found := findQuantity(bookSide, slot.OrderID)
		if !found {
			continue
		}

		out = append(out, managedOrder{types.ManagedOrder{
			OrderID:       slot.OrderID,
			ClientOrderID: slot.ClientOrderID,
			Price:         slot.OrderID.ShiftRight64(),
			Quantity:      qty,
			Side:          side,
		}})
	}
	return out
}

func findQuantity(side types.OrderBookSide, orderID types.Uint128) (uint64, bool) {
	for _, o := range side {
		if o.OrderID.Equal(orderID) {
			return o.Quantity, true
		}
	}
	return 0, false
}

// getStaleOrders partitions managed into the orders that no longer match
// the desired quote: an ask is stale iff its price != bestAsk or its
// quantity != askSize; a bid is stale iff its price != bestBid or its
// quantity != bidSize.
func getStaleOrders(managed []managedOrder, qv types.QuoteVolumes, bestBid, bestAsk uint64) []managedOrder {
	var stale []managedOrder
	for _, o := range managed {
		switch o.Side {
		case types.Ask:
			if o.Price != bestAsk || o.Quantity != qv.AskSize {
				stale = append(stale, o)
			}
		case types.Bid:
			if o.Price != bestBid || o.Quantity != qv.BidSize {
				stale = append(stale, o)
			}
		}
	}
	return stale
}

// Reconcile diffs the current managed orders against the target quote and
// submits cancel-then-place instructions for whatever has drifted. An
// order's client id only enters m.inflight once the transaction carrying it
// has actually been sent — a deferred or failed submission leaks nothing.
func (m *Manager) Reconcile(ctx context.Context, ob *types.OrderBook, oo types.OpenOrders, qv types.QuoteVolumes, qp types.QuotePrices) error {
	managed := getManagedOrders(oo, ob)
	stale := getStaleOrders(managed, qv, qp.BidPrice, qp.AskPrice)

	builder := txbuilder.New()
	var cancelIDs, placeIDs []uint64

	for _, o := range stale {
		ix := m.cancelInstruction(o.OrderID, o.ClientOrderID)
		cancelIDs, placeIDs = m.flushIfNeeded(ctx, builder, ix, cancelIDs, placeIDs)
		builder.Add(ix)
		cancelIDs = append(cancelIDs, o.ClientOrderID)
	}

	if len(managed) == 0 || len(stale) > 0 {
		for _, ix := range m.newOrderInstructions(qv, qp) {
			cancelIDs, placeIDs = m.flushIfNeeded(ctx, builder, ix.ix, cancelIDs, placeIDs)
			builder.Add(ix.ix)
			placeIDs = append(placeIDs, ix.clientOrderID)
		}
	}

	if builder.Len() > 0 {
		if err := m.submit(ctx, builder, cancelIDs, placeIDs); err != nil {
			return err
		}
	}
	return nil
}

// CancelAll cancels every currently resting order regardless of
// staleness, used on shutdown and by the watchdog's kill signal.
func (m *Manager) CancelAll(ctx context.Context, oo types.OpenOrders) error {
	builder := txbuilder.New()
	var cancelIDs []uint64

	for _, slot := range oo.Slots {
		if !slot.Occupied {
			continue
		}
		ix := m.cancelInstruction(slot.OrderID, slot.ClientOrderID)
		cancelIDs, _ = m.flushIfNeeded(ctx, builder, ix, cancelIDs, nil)
		builder.Add(ix)
		cancelIDs = append(cancelIDs, slot.ClientOrderID)
	}

	if builder.Len() > 0 {
		return m.submit(ctx, builder, cancelIDs, nil)
	}
	return nil
}

// flushIfNeeded submits the builder's current batch before it would grow
// past MaxMessageBytes with next added. The pending id lists are only ever
// handed to a batch that is actually about to be submitted, so a flush
// clears them regardless of outcome: after a confirmed send submit has
// already recorded them in m.inflight, and after a deferral or a failure
// they describe instructions that were just discarded by builder.Clear, not
// ones still pending.
func (m *Manager) flushIfNeeded(ctx context.Context, builder *txbuilder.Builder, next txbuilder.Instruction, cancelIDs, placeIDs []uint64) ([]uint64, []uint64) {
	if !builder.ShouldFlush(next, m.cfg.MaxMessageBytes) {
		return cancelIDs, placeIDs
	}
	if err := m.submit(ctx, builder, cancelIDs, placeIDs); err != nil {
		m.logger.Warn("mid-reconcile flush failed", "error", err)
	}
	builder.Clear()
	return nil, nil
}

// submit sends builder's transaction and, only once it is actually
// confirmed sent, records cancelIDs/placeIDs as inflight. A stale
// chain-meta nonce defers submission to the next tick per spec's retry
// policy: logged, not an error, and nothing is recorded as inflight.
func (m *Manager) submit(ctx context.Context, builder *txbuilder.Builder, cancelIDs, placeIDs []uint64) error {
	meta := m.chainMeta.Get()
	if !meta.IsReady() {
		m.logger.Warn("chain metadata not ready, deferring submission to next tick")
		return nil
	}

	tx, err := builder.Build(meta.Blockhash, m.signer)
	if err != nil {
		m.logger.Warn("failed to build transaction", "error", err)
		return fmt.Errorf("build transaction: %w", err)
	}

	sig, err := m.client.SendAndConfirmTransaction(ctx, tx)
	if err != nil {
		m.logger.Warn("failed to submit transaction", "error", err)
		return fmt.Errorf("submit transaction: %w", err)
	}

	for _, id := range cancelIDs {
		m.inflight.Cancelling.Add(id)
	}
	for _, id := range placeIDs {
		m.inflight.Placing.Add(id)
	}

	m.logger.Info("submitted transaction", "signature", sig, "instructions", builder.Len())
	return nil
}

type newOrder struct {
	ix            txbuilder.Instruction
	clientOrderID uint64
}

// newOrderInstructions builds ask-then-bid new-order instructions,
// matching get_new_orders_ixs's ordering. An empty side (size 0) is
// skipped entirely.
func (m *Manager) newOrderInstructions(qv types.QuoteVolumes, qp types.QuotePrices) []newOrder {
	var out []newOrder

	if qv.AskSize > 0 {
		id := m.nextClientOrderID()
		out = append(out, newOrder{ix: m.newOrderInstruction(types.Ask, qp.AskPrice, qv.AskSize, id), clientOrderID: id})
	}
	if qv.BidSize > 0 {
		id := m.nextClientOrderID()
		out = append(out, newOrder{ix: m.newOrderInstruction(types.Bid, qp.BidPrice, qv.BidSize, id), clientOrderID: id})
	}

	return out
}

func (m *Manager) newOrderInstruction(side types.Side, price, quantity, clientOrderID uint64) txbuilder.Instruction {
	data := encodeNewOrderData(side, price, quantity, clientOrderID)
	return txbuilder.Instruction{
		ProgramID: m.programID,
		Accounts: []txbuilder.AccountMeta{
			{Pubkey: m.market, IsWritable: true},
			{Pubkey: m.openOrders, IsWritable: true},
			{Pubkey: m.signer.Pubkey(), IsSigner: true},
		},
		Data: data,
	}
}

func (m *Manager) cancelInstruction(orderID types.Uint128, clientOrderID uint64) txbuilder.Instruction {
	data := encodeCancelOrderData(orderID, clientOrderID)
	return txbuilder.Instruction{
		ProgramID: m.programID,
		Accounts: []txbuilder.AccountMeta{
			{Pubkey: m.market, IsWritable: true},
			{Pubkey: m.openOrders, IsWritable: true},
			{Pubkey: m.signer.Pubkey(), IsSigner: true},
		},
		Data: data,
	}
}
