package providers

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"mm-engine/internal/cache"
	"mm-engine/internal/codec"
	"mm-engine/pkg/types"
)

// UserState is the decoded margin-account balances the inventory manager
// needs for one market's base token: native deposit and borrow amounts,
// scaled later by the token's decimals.
//
// Grounded on original_source's market_maker/inventory_manager.rs's
// get_user_delta, which reads total_deposits/total_borrows for the market's
// base token off the user's margin account.
type UserState struct {
	Owner          types.Pubkey
	DepositsNative uint64
	BorrowsNative  uint64
}

const (
	userDepositsOff = 0
	userBorrowsOff  = 8
	userStateLen    = 16
)

// NewUserProvider watches one user (margin account) key and republishes a
// decoded UserState on every change.
func NewUserProvider(c *cache.AccountsCache, userKey, owner types.Pubkey, logger *slog.Logger) *Provider[UserState] {
	decode := func(c *cache.AccountsCache) (UserState, bool, error) {
		acc, ok := c.Get(userKey)
		if !ok {
			return UserState{}, false, nil
		}
		state, err := decodeUserState(acc.Bytes, owner)
		if err != nil {
			return UserState{}, false, err
		}
		return state, true, nil
	}

	return New(c, []types.Pubkey{userKey}, decode, logger.With("component", "user_provider"))
}

func decodeUserState(raw []byte, owner types.Pubkey) (UserState, error) {
	body, err := codec.Strip(raw)
	if err != nil {
		return UserState{}, fmt.Errorf("strip user account framing: %w", err)
	}
	if len(body) < userStateLen {
		return UserState{}, fmt.Errorf("user account too short (%d bytes)", len(body))
	}
	return UserState{
		Owner:          owner,
		DepositsNative: binary.LittleEndian.Uint64(body[userDepositsOff : userDepositsOff+8]),
		BorrowsNative:  binary.LittleEndian.Uint64(body[userBorrowsOff : userBorrowsOff+8]),
	}, nil
}
