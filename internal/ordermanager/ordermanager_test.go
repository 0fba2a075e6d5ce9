package ordermanager

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mm-engine/internal/chainmeta"
	"mm-engine/internal/signer"
	"mm-engine/internal/venue"
	"mm-engine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderIDWithPrice(low uint64, price uint64) types.Uint128 {
	return types.Uint128{Lo: low, Hi: price}
}

func TestGetManagedOrdersDropsSlotsMissingFromBook(t *testing.T) {
	t.Parallel()

	var oo types.OpenOrders
	oo.Slots[0] = types.OpenOrdersSlot{Occupied: true, Side: types.Ask, OrderID: orderIDWithPrice(1, 100), ClientOrderID: 1}
	oo.Slots[1] = types.OpenOrdersSlot{Occupied: true, Side: types.Bid, OrderID: orderIDWithPrice(2, 90), ClientOrderID: 2}

	ob := &types.OrderBook{
		Asks: types.OrderBookSide{{OrderID: orderIDWithPrice(1, 100), Price: 100, Quantity: 5}},
		// bids side has no matching order for slot 1 -> should be dropped
	}

	managed := getManagedOrders(oo, ob)
	if len(managed) != 1 {
		t.Fatalf("len(managed) = %d, want 1", len(managed))
	}
	if managed[0].ClientOrderID != 1 {
		t.Errorf("ClientOrderID = %d, want 1", managed[0].ClientOrderID)
	}
}

func TestGetStaleOrdersDetectsPriceAndQuantityDrift(t *testing.T) {
	t.Parallel()

	managed := []managedOrder{
		{types.ManagedOrder{Side: types.Ask, Price: 100, Quantity: 5, ClientOrderID: 1}},
		{types.ManagedOrder{Side: types.Bid, Price: 90, Quantity: 5, ClientOrderID: 2}},
	}
	qv := types.QuoteVolumes{AskSize: 5, BidSize: 5}

	// Both match exactly: no stale orders.
	if stale := getStaleOrders(managed, qv, 90, 100); len(stale) != 0 {
		t.Errorf("expected no stale orders, got %d", len(stale))
	}

	// Ask price drifted.
	if stale := getStaleOrders(managed, qv, 90, 101); len(stale) != 1 || stale[0].ClientOrderID != 1 {
		t.Errorf("expected ask (id 1) stale on price drift, got %+v", stale)
	}

	// Bid quantity drifted.
	qvDrift := types.QuoteVolumes{AskSize: 5, BidSize: 6}
	if stale := getStaleOrders(managed, qvDrift, 90, 100); len(stale) != 1 || stale[0].ClientOrderID != 2 {
		t.Errorf("expected bid (id 2) stale on quantity drift, got %+v", stale)
	}
}

func newTestManager(t *testing.T, rpcURL string) *Manager {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "keypair.json")
	buf, _ := json.Marshal([]byte(priv))
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write keypair: %v", err)
	}
	s, err := signer.Load(path)
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}

	client := venue.NewClient(rpcURL, true, testLogger()) // dry-run
	cm := chainmeta.NewService(client, 0, testLogger())

	return New(client, cm, s, types.Pubkey{1}, types.Pubkey{2}, types.Pubkey{3},
		Config{MaxMessageBytes: 1000, MaxInflightTracked: 128}, testLogger())
}

func blockhashServer(t *testing.T) *httptest.Server {
	t.Helper()
	var hash [32]byte
	hash[0] = 1
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     int    `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var result any
		switch req.Method {
		case "getLatestBlockhashWithCommitment":
			result = map[string]any{
				"context": map[string]any{"slot": 1},
				"value":   map[string]any{"blockhash": base64.StdEncoding.EncodeToString(hash[:])},
			}
		case "getSlot":
			result = 1
		}
		resultBytes, _ := json.Marshal(result)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": json.RawMessage(resultBytes)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestReconcilePlacesOrdersWhenNoneExist(t *testing.T) {
	t.Parallel()

	srv := blockhashServer(t)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	if err := m.chainMeta.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	ob := &types.OrderBook{}
	var oo types.OpenOrders
	qv := types.QuoteVolumes{BidSize: 10, AskSize: 10}
	qp := types.QuotePrices{BidPrice: 90, AskPrice: 100}

	if err := m.Reconcile(context.Background(), ob, oo, qv, qp); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if m.inflight.Placing.Len() != 2 {
		t.Errorf("expected 2 placing entries (ask+bid), got %d", m.inflight.Placing.Len())
	}
}

func TestReconcileSkipsWhenNothingStale(t *testing.T) {
	t.Parallel()

	srv := blockhashServer(t)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	if err := m.chainMeta.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	orderID := orderIDWithPrice(1, 100)
	ob := &types.OrderBook{Asks: types.OrderBookSide{{OrderID: orderID, Price: 100, Quantity: 10}}}
	var oo types.OpenOrders
	oo.Slots[0] = types.OpenOrdersSlot{Occupied: true, Side: types.Ask, OrderID: orderID, ClientOrderID: 5}

	qv := types.QuoteVolumes{AskSize: 10}
	qp := types.QuotePrices{AskPrice: 100}

	if err := m.Reconcile(context.Background(), ob, oo, qv, qp); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if m.inflight.Placing.Len() != 0 || m.inflight.Cancelling.Len() != 0 {
		t.Error("expected no order activity when nothing is stale")
	}
}

func TestReconcileDefersWithoutErrorOrInflightLeakWhenChainMetaNotReady(t *testing.T) {
	t.Parallel()

	srv := blockhashServer(t)
	defer srv.Close()

	// newTestManager's chainmeta Service never has LoadInitial called, so
	// meta.IsReady() is false for the whole test.
	m := newTestManager(t, srv.URL)

	ob := &types.OrderBook{}
	var oo types.OpenOrders
	qv := types.QuoteVolumes{BidSize: 10, AskSize: 10}
	qp := types.QuotePrices{BidPrice: 90, AskPrice: 100}

	if err := m.Reconcile(context.Background(), ob, oo, qv, qp); err != nil {
		t.Fatalf("Reconcile: want nil error on deferred submission, got %v", err)
	}
	if m.inflight.Placing.Len() != 0 || m.inflight.Cancelling.Len() != 0 {
		t.Errorf("expected no inflight entries for a deferred submission, got placing=%d cancelling=%d",
			m.inflight.Placing.Len(), m.inflight.Cancelling.Len())
	}
}

func TestCancelAllCancelsEveryOccupiedSlot(t *testing.T) {
	t.Parallel()

	srv := blockhashServer(t)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	if err := m.chainMeta.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}

	var oo types.OpenOrders
	oo.Slots[0] = types.OpenOrdersSlot{Occupied: true, Side: types.Ask, OrderID: orderIDWithPrice(1, 100), ClientOrderID: 7}
	oo.Slots[1] = types.OpenOrdersSlot{Occupied: true, Side: types.Bid, OrderID: orderIDWithPrice(2, 90), ClientOrderID: 8}

	if err := m.CancelAll(context.Background(), oo); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if m.inflight.Cancelling.Len() != 2 {
		t.Errorf("expected 2 cancelling entries, got %d", m.inflight.Cancelling.Len())
	}
}
