// Package inventory computes quote sizing and spread from a market's
// current inventory delta, exactly reproducing original_source's
// market_maker/inventory_manager.rs.
package inventory

import (
	"math"

	"github.com/shopspring/decimal"

	"mm-engine/pkg/types"
)

// expBase and bpsUnit are named constants matching the original's
// EXP_BASE and BPS_UNIT.
const (
	expBase = 2
	bpsUnit = 10000
)

// Config mirrors config.InventoryManagerConfig's fields needed for pure
// math (kept decoupled from the config package so this package has no
// import-time dependency on viper).
type Config struct {
	MaxQuote   int64
	ShapeNum   uint32
	ShapeDenom uint32
	Spread     uint8
}

// Delta computes the current inventory delta for one market's base token:
// native deposits and borrows are converted to UI-decimal units via
// decimal.Decimal (avoiding float drift during the division) before
// truncating to an int64 lot count, matching the original's
// total_deposits/10^decimals − total_borrows/10^decimals.
func Delta(depositsNative, borrowsNative uint64, decimals uint8) int64 {
	scale := decimal.New(1, int32(decimals))
	longPos := decimal.NewFromInt(int64(depositsNative)).Div(scale).Truncate(0)
	shortPos := decimal.NewFromInt(int64(borrowsNative)).Div(scale).Truncate(0)
	return longPos.Sub(shortPos).IntPart()
}

// adjQuoteSize shapes the quote volume on the heavier side of a nonzero
// delta: shaped = shapeNum*|delta|, divided = shaped/shapeDenom (integer
// division), divisor = expBase^divided, result = maxQuote/divisor. A
// divided exponent large enough to overflow uint64 saturates the result to
// zero rather than wrapping.
func adjQuoteSize(absDelta uint64, cfg Config) uint64 {
	shaped := uint64(cfg.ShapeNum) * absDelta
	divided := shaped / uint64(cfg.ShapeDenom)

	if divided >= 64 {
		return 0
	}
	divisor := uint64(1) << divided
	return uint64(cfg.MaxQuote) / divisor
}

// GetQuoteVolumes sizes the bid and ask quantities for the current delta.
// A negative delta (short) widens the bid side to buy back toward
// neutral; a positive delta (long) widens the ask side to sell down.
// This is the literal source behavior for spec.md's open "delta sign
// convention" question — see DESIGN.md.
func GetQuoteVolumes(currentDelta int64, cfg Config) types.QuoteVolumes {
	absDelta := currentDelta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	adjusted := adjQuoteSize(uint64(absDelta), cfg)

	if currentDelta < 0 {
		return types.QuoteVolumes{BidSize: uint64(cfg.MaxQuote), AskSize: adjusted}
	}
	return types.QuoteVolumes{BidSize: adjusted, AskSize: uint64(cfg.MaxQuote)}
}

// GetSpread computes bid/ask prices around oraclePrice widened by
// spreadBps, floor-truncated exactly as the original's truncating f64
// cast: ask = floor(oraclePrice * (10000+spread)/10000), bid =
// floor(oraclePrice / ((10000+spread)/10000)).
func GetSpread(oraclePrice uint64, spreadBps uint8) types.QuotePrices {
	num := float64(bpsUnit+uint64(spreadBps)) / float64(bpsUnit)
	ask := uint64(math.Floor(float64(oraclePrice) * num))
	bid := uint64(math.Floor(float64(oraclePrice) / num))
	return types.QuotePrices{BidPrice: bid, AskPrice: ask}
}
