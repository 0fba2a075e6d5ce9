package providers

import (
	"fmt"
	"log/slog"

	"mm-engine/internal/cache"
	"mm-engine/internal/codec"
	"mm-engine/pkg/types"
)

// orderBookDepth matches the original's hardcoded get_depth(25, ...) call.
const orderBookDepth = 25

// NewOrderBookProvider watches a market's bids and asks pages and
// republishes a combined *types.OrderBook on every change.
//
// Grounded on original_source's orderbook_provider.rs: each side is decoded
// independently (bids descending, asks ascending) via Strip+GetDepth, and a
// combined snapshot is published whenever either side updates.
func NewOrderBookProvider(c *cache.AccountsCache, market, bidsKey, asksKey types.Pubkey, pcLotSize, coinLotSize uint64, logger *slog.Logger) *Provider[*types.OrderBook] {
	decode := func(c *cache.AccountsCache) (*types.OrderBook, bool, error) {
		bidsAcc, haveBids := c.Get(bidsKey)
		asksAcc, haveAsks := c.Get(asksKey)
		if !haveBids || !haveAsks {
			return nil, false, nil
		}

		bids, err := decodeSide(bidsAcc.Bytes, pcLotSize, coinLotSize, false)
		if err != nil {
			return nil, false, fmt.Errorf("decode bids: %w", err)
		}
		asks, err := decodeSide(asksAcc.Bytes, pcLotSize, coinLotSize, true)
		if err != nil {
			return nil, false, fmt.Errorf("decode asks: %w", err)
		}

		return &types.OrderBook{Market: market, Bids: bids, Asks: asks}, true, nil
	}

	return New(c, []types.Pubkey{bidsKey, asksKey}, decode, logger.With("component", "orderbook_provider"))
}

func decodeSide(raw []byte, pcLotSize, coinLotSize uint64, ascending bool) (types.OrderBookSide, error) {
	body, err := codec.Strip(raw)
	if err != nil {
		return nil, err
	}
	return codec.GetDepth(body, orderBookDepth, pcLotSize, coinLotSize, ascending)
}
