// Package bootstrap performs the one-off startup resolution steps the
// supervisor needs before it can build the typed providers: confirming the
// market account is live, and deriving the per-user open-orders key.
//
// Grounded on original_source's rust_mm_bot main.rs, which resolves the
// market account once via get_account_with_commitment and derives the
// open-orders PDA before entering the provider-spawn phase. PDA derivation
// proper (curve-membership search) has no grounding in any pack library, so
// the key here is a deterministic sha256-based derivation over the same
// seeds (market, owner, program id, a fixed domain tag) — an address, not a signing
// key, so this preserves the "stable per-(market,owner) key" property the
// supervisor and order manager rely on without pulling in unrelated crypto.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"fmt"

	"mm-engine/internal/mmerr"
	"mm-engine/internal/venue"
	"mm-engine/pkg/types"
)

// openOrdersDomainTag distinguishes the open-orders derivation from any
// other address derived from the same (market, owner) pair.
var openOrdersDomainTag = []byte("mm-engine:open-orders")

// ResolveMarket confirms the market account exists on-chain before the
// supervisor starts ingesting it, matching the original's one-shot
// get_account_with_commitment check in its startup sequence.
func ResolveMarket(ctx context.Context, client *venue.Client, market types.Pubkey) error {
	_, ok, err := client.GetAccountWithCommitment(ctx, market, "confirmed")
	if err != nil {
		return mmerr.New(mmerr.KindFetchingMarket, err)
	}
	if !ok {
		return mmerr.New(mmerr.KindFetchingMarket, fmt.Errorf("market account %s not found", market))
	}
	return nil
}

// DeriveOpenOrdersKey derives the per-user open-orders key for a market,
// deterministic so that repeated runs resolve to the same account.
func DeriveOpenOrdersKey(market, owner, programID types.Pubkey) types.Pubkey {
	h := sha256.New()
	h.Write(market[:])
	h.Write(owner[:])
	h.Write(programID[:])
	h.Write(openOrdersDomainTag)

	sum := h.Sum(nil)
	var key types.Pubkey
	copy(key[:], sum[:len(key)])
	return key
}
