package bootstrap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"mm-engine/internal/venue"
	"mm-engine/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeriveOpenOrdersKeyIsDeterministicAndDistinct(t *testing.T) {
	t.Parallel()

	market := types.Pubkey{1}
	owner := types.Pubkey{2}
	programID := types.Pubkey{3}

	a := DeriveOpenOrdersKey(market, owner, programID)
	b := DeriveOpenOrdersKey(market, owner, programID)
	if a != b {
		t.Fatal("expected deterministic derivation")
	}

	otherOwner := types.Pubkey{9}
	c := DeriveOpenOrdersKey(market, otherOwner, programID)
	if a == c {
		t.Fatal("expected different owners to derive different keys")
	}
}

func TestResolveMarketReturnsErrorWhenAccountMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"jsonrpc": "2.0", "id": 1, "result": map[string]any{"context": map[string]any{"slot": 1}, "value": nil}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := venue.NewClient(srv.URL, false, testLogger())
	if err := ResolveMarket(context.Background(), client, types.Pubkey{7}); err == nil {
		t.Fatal("expected error when market account is missing")
	}
}

func TestResolveMarketSucceedsWhenAccountPresent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := base64.StdEncoding.EncodeToString([]byte("account-bytes"))
		resp := map[string]any{"jsonrpc": "2.0", "id": 1, "result": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"data": []any{data, "base64"}},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := venue.NewClient(srv.URL, false, testLogger())
	if err := ResolveMarket(context.Background(), client, types.Pubkey{7}); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
}
