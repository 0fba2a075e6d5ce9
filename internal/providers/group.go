package providers

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"mm-engine/internal/cache"
	"mm-engine/internal/codec"
	"mm-engine/pkg/types"
)

// GroupState is the decoded group/oracle data the worker needs to compute
// a reference price: the market's current oracle price in native units.
//
// Grounded on original_source's cyphergroup.rs (group account holds the
// program's market/oracle metadata) and inventory_manager.rs's get_spread,
// which takes an oracle price as its sole input.
type GroupState struct {
	Address     types.Pubkey
	OraclePrice uint64
}

const groupOraclePriceOff = 0

// NewGroupProvider watches one group/oracle account and republishes the
// decoded oracle price on every change.
func NewGroupProvider(c *cache.AccountsCache, groupKey types.Pubkey, logger *slog.Logger) *Provider[GroupState] {
	decode := func(c *cache.AccountsCache) (GroupState, bool, error) {
		acc, ok := c.Get(groupKey)
		if !ok {
			return GroupState{}, false, nil
		}
		state, err := decodeGroupState(acc.Bytes, groupKey)
		if err != nil {
			return GroupState{}, false, err
		}
		return state, true, nil
	}

	return New(c, []types.Pubkey{groupKey}, decode, logger.With("component", "group_provider"))
}

func decodeGroupState(raw []byte, address types.Pubkey) (GroupState, error) {
	body, err := codec.Strip(raw)
	if err != nil {
		return GroupState{}, fmt.Errorf("strip group account framing: %w", err)
	}
	if len(body) < 8 {
		return GroupState{}, fmt.Errorf("group account too short (%d bytes)", len(body))
	}
	return GroupState{
		Address:     address,
		OraclePrice: binary.LittleEndian.Uint64(body[groupOraclePriceOff : groupOraclePriceOff+8]),
	}, nil
}
