// Package marketdepth holds the two-sided, tick-indexed quantity map each
// processor maintains independently (spec §4.2). It knows nothing about
// orders, latency, or fills — only price levels and the best/extreme
// tracking needed to keep best_bid_tick < best_ask_tick an invariant.
package marketdepth

import "hftbacktest-go/domain"

// Callback receives the depth-mutation hooks the Exchange Processor wires
// in to drive queue-position updates and crossed-book fills (spec §4.2).
// The Local Processor passes a nil Callback: Depth.Update* treats a nil
// receiver as "no hooks".
type Callback interface {
	OnBidQtyChg(priceTick int64, prevQty, newQty float64, ts int64)
	OnAskQtyChg(priceTick int64, prevQty, newQty float64, ts int64)
	OnBestBidUpdate(prevTick, newTick int64, ts int64)
	OnBestAskUpdate(prevTick, newTick int64, ts int64)
}

// Depth is one side-pair of price->quantity maps plus the cached best and
// extreme-ever-seen ticks used to bound the linear rescan when a best
// level disappears.
type Depth struct {
	TickSize float64
	LotSize  float64

	bid map[int64]float64
	ask map[int64]float64

	bestBidTick int64
	bestAskTick int64
	lowBidTick  int64
	highAskTick int64
}

// New constructs an empty Depth for the given tick/lot size.
func New(tickSize, lotSize float64) *Depth {
	return &Depth{
		TickSize:    tickSize,
		LotSize:     lotSize,
		bid:         make(map[int64]float64),
		ask:         make(map[int64]float64),
		bestBidTick: domain.InvalidMinTick,
		bestAskTick: domain.InvalidMaxTick,
		lowBidTick:  domain.InvalidMaxTick,
		highAskTick: domain.InvalidMinTick,
	}
}

func (d *Depth) BestBidTick() int64 { return d.bestBidTick }
func (d *Depth) BestAskTick() int64 { return d.bestAskTick }
func (d *Depth) LowBidTick() int64  { return d.lowBidTick }
func (d *Depth) HighAskTick() int64 { return d.highAskTick }

// BidQty returns the resting quantity at a bid tick, 0 if absent.
func (d *Depth) BidQty(tick int64) float64 { return d.bid[tick] }

// AskQty returns the resting quantity at an ask tick, 0 if absent.
func (d *Depth) AskQty(tick int64) float64 { return d.ask[tick] }

// BestBid / BestAsk reconstruct the floating best prices; callers must
// check the tick against the Invalid sentinels first if they need to
// distinguish "no book" from "book at price 0".
func (d *Depth) BestBid() float64 { return domain.TickToPrice(d.bestBidTick, d.TickSize) }
func (d *Depth) BestAsk() float64 { return domain.TickToPrice(d.bestAskTick, d.TickSize) }

// Mid is the midpoint of the best bid/ask.
func (d *Depth) Mid() float64 { return (d.BestBid() + d.BestAsk()) / 2.0 }

// ApplySnapshot resets both sides from a batch of snapshot rows. Called
// once at construction time; clears any existing levels first so a
// mid-stream re-snapshot (SPEC_FULL §11 snapshot modes) is safe to call
// more than once.
func (d *Depth) ApplySnapshot(rows []domain.Event) {
	d.bid = make(map[int64]float64)
	d.ask = make(map[int64]float64)
	d.bestBidTick = domain.InvalidMinTick
	d.bestAskTick = domain.InvalidMaxTick
	d.lowBidTick = domain.InvalidMaxTick
	d.highAskTick = domain.InvalidMinTick

	firstBid, firstAsk := true, true
	for _, row := range rows {
		tick := domain.PriceToTick(row.Price, d.TickSize)
		switch row.Side {
		case domain.SideBuy:
			if domain.IsZeroQty(row.Qty, d.LotSize) {
				continue
			}
			d.bid[tick] = row.Qty
			if firstBid || tick > d.bestBidTick {
				d.bestBidTick = tick
				firstBid = false
			}
			if tick < d.lowBidTick {
				d.lowBidTick = tick
			}
		case domain.SideSell:
			if domain.IsZeroQty(row.Qty, d.LotSize) {
				continue
			}
			d.ask[tick] = row.Qty
			if firstAsk || tick < d.bestAskTick {
				d.bestAskTick = tick
				firstAsk = false
			}
			if tick > d.highAskTick {
				d.highAskTick = tick
			}
		}
	}
}

// ClearDepth removes levels from the best on side down/up to
// clearUptoPrice inclusive; side == SideNone clears both sides entirely
// (spec §4.2).
func (d *Depth) ClearDepth(side domain.Side, clearUptoPrice float64) {
	switch side {
	case domain.SideBuy:
		clearUpto := domain.PriceToTick(clearUptoPrice, d.TickSize)
		if d.bestBidTick == domain.InvalidMinTick {
			return
		}
		for t := d.bestBidTick; t >= clearUpto; t-- {
			delete(d.bid, t)
		}
		d.recomputeBestBid()
	case domain.SideSell:
		clearUpto := domain.PriceToTick(clearUptoPrice, d.TickSize)
		if d.bestAskTick == domain.InvalidMaxTick {
			return
		}
		for t := d.bestAskTick; t <= clearUpto; t++ {
			delete(d.ask, t)
		}
		d.recomputeBestAsk()
	default:
		d.bid = make(map[int64]float64)
		d.ask = make(map[int64]float64)
		d.bestBidTick = domain.InvalidMinTick
		d.bestAskTick = domain.InvalidMaxTick
		d.lowBidTick = domain.InvalidMaxTick
		d.highAskTick = domain.InvalidMinTick
	}
}

// UpdateBidDepth applies one bid-side depth row, updating the best/low
// tracking and invoking cb's hooks (nil-safe) on qty and best changes.
// See spec §4.2 for the exact algorithm this mirrors.
func (d *Depth) UpdateBidDepth(price, qty float64, ts int64, cb Callback) {
	tick := domain.PriceToTick(price, d.TickSize)
	prevQty := d.bid[tick]

	if domain.IsZeroQty(qty, d.LotSize) {
		delete(d.bid, tick)
		if cb != nil {
			cb.OnBidQtyChg(tick, prevQty, 0, ts)
		}
		if tick == d.bestBidTick {
			d.bestBidTick = d.rescanBid()
		}
		return
	}

	d.bid[tick] = qty
	if cb != nil {
		cb.OnBidQtyChg(tick, prevQty, qty, ts)
	}
	if tick < d.lowBidTick || d.lowBidTick == domain.InvalidMaxTick {
		d.lowBidTick = tick
	}

	if tick > d.bestBidTick {
		prevBest := d.bestBidTick
		d.bestBidTick = tick
		if cb != nil {
			cb.OnBestBidUpdate(prevBest, tick, ts)
		}
		if d.bestBidTick >= d.bestAskTick {
			d.ClearDepth(domain.SideSell, domain.TickToPrice(d.bestBidTick, d.TickSize))
		}
	}
}

// UpdateAskDepth is the ask-side mirror of UpdateBidDepth.
func (d *Depth) UpdateAskDepth(price, qty float64, ts int64, cb Callback) {
	tick := domain.PriceToTick(price, d.TickSize)
	prevQty := d.ask[tick]

	if domain.IsZeroQty(qty, d.LotSize) {
		delete(d.ask, tick)
		if cb != nil {
			cb.OnAskQtyChg(tick, prevQty, 0, ts)
		}
		if tick == d.bestAskTick {
			d.bestAskTick = d.rescanAsk()
		}
		return
	}

	d.ask[tick] = qty
	if cb != nil {
		cb.OnAskQtyChg(tick, prevQty, qty, ts)
	}
	if tick > d.highAskTick || d.highAskTick == domain.InvalidMinTick {
		d.highAskTick = tick
	}

	if tick < d.bestAskTick {
		prevBest := d.bestAskTick
		d.bestAskTick = tick
		if cb != nil {
			cb.OnBestAskUpdate(prevBest, tick, ts)
		}
		if d.bestAskTick <= d.bestBidTick {
			d.ClearDepth(domain.SideBuy, domain.TickToPrice(d.bestAskTick, d.TickSize))
		}
	}
}

// rescanBid walks downward from bestBidTick-1 to lowBidTick looking for
// the next present level, bounding the scan with the cached low-water
// mark rather than scanning to -infinity.
func (d *Depth) rescanBid() int64 {
	for t := d.bestBidTick - 1; t >= d.lowBidTick; t-- {
		if _, ok := d.bid[t]; ok {
			return t
		}
	}
	return domain.InvalidMinTick
}

func (d *Depth) rescanAsk() int64 {
	for t := d.bestAskTick + 1; t <= d.highAskTick; t++ {
		if _, ok := d.ask[t]; ok {
			return t
		}
	}
	return domain.InvalidMaxTick
}

func (d *Depth) recomputeBestBid() {
	best := domain.InvalidMinTick
	for t := range d.bid {
		if t > best {
			best = t
		}
	}
	d.bestBidTick = best
}

func (d *Depth) recomputeBestAsk() {
	best := domain.InvalidMaxTick
	for t := range d.ask {
		if t < best {
			best = t
		}
	}
	d.bestAskTick = best
}
