package providers

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"mm-engine/internal/cache"
	"mm-engine/internal/codec"
	"mm-engine/pkg/types"
)

const (
	openOrdersFreeSlotBitsOff = 0
	openOrdersIsBidBitsOff    = 16
	openOrdersOrdersOff       = 32
	openOrdersOrderIDSize     = 16
	openOrdersClientIDSize    = 8
)

// NewOpenOrdersProvider watches one open-orders account and republishes a
// decoded types.OpenOrders on every change.
//
// Grounded on original_source's open_orders_provider.rs (watch one key,
// decode via parse_dex_account, publish) and order_manager.rs's
// get_open_orders (order_id != 0 marks an occupied slot, price is packed
// into the high 64 bits of the order id — the same convention the
// orderbook codec uses for its leaf keys).
func NewOpenOrdersProvider(c *cache.AccountsCache, ooKey, owner types.Pubkey, logger *slog.Logger) *Provider[types.OpenOrders] {
	decode := func(c *cache.AccountsCache) (types.OpenOrders, bool, error) {
		acc, ok := c.Get(ooKey)
		if !ok {
			return types.OpenOrders{}, false, nil
		}
		oo, err := decodeOpenOrders(acc.Bytes, owner)
		if err != nil {
			return types.OpenOrders{}, false, err
		}
		return oo, true, nil
	}

	return New(c, []types.Pubkey{ooKey}, decode, logger.With("component", "open_orders_provider"))
}

func decodeOpenOrders(raw []byte, owner types.Pubkey) (types.OpenOrders, error) {
	body, err := codec.Strip(raw)
	if err != nil {
		return types.OpenOrders{}, fmt.Errorf("strip open orders framing: %w", err)
	}

	ordersEnd := openOrdersOrdersOff + types.OpenOrdersSlotCount*openOrdersOrderIDSize
	clientIDsEnd := ordersEnd + types.OpenOrdersSlotCount*openOrdersClientIDSize
	if len(body) < clientIDsEnd {
		return types.OpenOrders{}, fmt.Errorf("open orders account too short (%d bytes)", len(body))
	}

	isBidBits := types.Uint128FromBytesLE(body[openOrdersIsBidBitsOff : openOrdersIsBidBitsOff+16])

	oo := types.OpenOrders{Owner: owner}
	for i := 0; i < types.OpenOrdersSlotCount; i++ {
		orderOff := openOrdersOrdersOff + i*openOrdersOrderIDSize
		orderID := types.Uint128FromBytesLE(body[orderOff : orderOff+openOrdersOrderIDSize])

		clientOff := ordersEnd + i*openOrdersClientIDSize
		clientOrderID := binary.LittleEndian.Uint64(body[clientOff : clientOff+openOrdersClientIDSize])

		if orderID.IsZero() {
			continue
		}

		side := types.Ask
		if bitSet128(isBidBits, i) {
			side = types.Bid
		}

		oo.Slots[i] = types.OpenOrdersSlot{
			OrderID:       orderID,
			ClientOrderID: clientOrderID,
			Side:          side,
			Occupied:      true,
		}
	}

	return oo, nil
}

func bitSet128(u types.Uint128, i int) bool {
	if i >= 64 {
		return u.Hi&(1<<uint(i-64)) != 0
	}
	return u.Lo&(1<<uint(i)) != 0
}
