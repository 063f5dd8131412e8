package domain

import "github.com/shopspring/decimal"

// Sentinels for "no best level" per side. Bid saturates low, ask
// saturates high, so that any real tick compares as better.
const (
	InvalidMinTick int64 = -1 << 62
	InvalidMaxTick int64 = 1 << 62
)

// PriceToTick converts a floating price to its integer tick
// representation, price_tick = round(price / tick_size). The conversion
// goes through decimal.Decimal rather than plain float64 division so that
// ticks computed from feed prices carrying more decimal digits than
// float64 can cleanly represent (e.g. 0.1 tick sizes on assets quoted to
// 8 decimals) don't drift by a tick after millions of replayed rows.
func PriceToTick(price, tickSize float64) int64 {
	d := decimal.NewFromFloat(price).Div(decimal.NewFromFloat(tickSize))
	return d.Round(0).IntPart()
}

// TickToPrice is the inverse of PriceToTick.
func TickToPrice(tick int64, tickSize float64) float64 {
	return decimal.NewFromInt(tick).Mul(decimal.NewFromFloat(tickSize)).InexactFloat64()
}

// QtyToLots converts a floating quantity to an integer lot count, used
// only for lot-granularity checks (whether a level is effectively zero,
// whether a queue position is negative), never as a storage
// representation (quantities themselves stay float64 throughout,
// matching the source).
func QtyToLots(qty, lotSize float64) int64 {
	d := decimal.NewFromFloat(qty).Div(decimal.NewFromFloat(lotSize))
	return d.Round(0).IntPart()
}

// IsZeroQty reports whether qty rounds to zero lots, the trigger for
// deleting a depth level (spec §3, Market Depth invariants).
func IsZeroQty(qty, lotSize float64) bool {
	return QtyToLots(qty, lotSize) == 0
}

// FloorQtyToLots rounds qty down to the nearest whole lot, used to turn a
// queue model's fractional "how much of this trade was at/behind our
// position" estimate into an executable quantity.
func FloorQtyToLots(qty, lotSize float64) float64 {
	d := decimal.NewFromFloat(qty).Div(decimal.NewFromFloat(lotSize))
	return d.Floor().Mul(decimal.NewFromFloat(lotSize)).InexactFloat64()
}
