// Package driver implements the Backtest Driver (spec §4.7) and the
// strategy-facing time-advance API (spec §6): elapse, wait_order_response,
// wait_next_feed, submit_*, cancel, and the read-only view accessors.
// Multi-asset coordination (SPEC_FULL §11) is this package's own
// addition: the single-asset driver in the original source never had to
// pick a side across more than one asset's pair of processors.
package driver

import (
	"math"

	"hftbacktest-go/domain"
	"hftbacktest-go/exchange"
	"hftbacktest-go/local"
	"hftbacktest-go/marketdepth"
)

// endOfData is the sentinel both processors return once every chunk and
// every pending bus message is exhausted.
const endOfData = -2

// Asset bundles one instrument's Local and Exchange processors, the pair
// the driver steps independently of every other asset's pair.
type Asset struct {
	Name     string
	Local    *local.Processor
	Exchange *exchange.Processor
}

// Driver coordinates N independent asset pairs under one strategy-visible
// clock. Each Elapse/Wait* call runs the step loop until the target local
// timestamp is reached or every asset has exhausted its data and buses.
type Driver struct {
	assets    []*Asset
	currentTS int64
}

// New constructs a driver over the given assets, processed in the order
// given whenever their next timestamps tie.
func New(assets []*Asset) *Driver {
	return &Driver{assets: assets}
}

// CurrentTimestamp returns the most recently observed local timestamp
// across every asset.
func (d *Driver) CurrentTimestamp() int64 { return d.currentTS }

type candidate struct {
	assetIdx int
	isLocal  bool
	ts       int64
}

// next picks the single next unit of work across every asset and side:
// the smallest positive timestamp, ties broken toward the exchange side
// per ordering guarantee 4 (exch_ts == local_ts processes exchange-first).
func (d *Driver) next() (candidate, bool) {
	best := candidate{ts: -1}
	found := false
	consider := func(idx int, isLocal bool, ts int64) {
		if ts <= 0 {
			return
		}
		if !found || ts < best.ts || (ts == best.ts && !isLocal && best.isLocal) {
			best = candidate{assetIdx: idx, isLocal: isLocal, ts: ts}
			found = true
		}
	}
	for i, a := range d.assets {
		consider(i, false, a.Exchange.NextTimestamp())
		consider(i, true, a.Local.NextTimestamp())
	}
	return best, found
}

// step advances exactly one unit of work, returning the timestamp
// processed and whether there was any work left at all.
func (d *Driver) step() (int64, bool) {
	cand, ok := d.next()
	if !ok {
		return 0, false
	}
	a := d.assets[cand.assetIdx]
	if cand.isLocal {
		a.Local.Process()
		d.currentTS = cand.ts
	} else {
		a.Exchange.Process(0, false)
	}
	return cand.ts, true
}

// runUntil steps repeatedly until current local time reaches target or
// every asset is exhausted, then also processes every remaining unit of
// work stamped at the local timestamp it stopped on, so rows sharing one
// timestamp are never split across calls. Returns false (the strategy
// must stop) only on exhaustion; reaching the target returns true even if
// some assets still have pending work left for a later call.
func (d *Driver) runUntil(target int64) bool {
	for d.currentTS < target {
		if _, ok := d.step(); !ok {
			return false
		}
	}
	for {
		cand, ok := d.next()
		if !ok || cand.ts > d.currentTS {
			return true
		}
		d.step()
	}
}

// Elapse advances the local clock by duration, running both sides of
// every asset until then. Returns false on end-of-data.
func (d *Driver) Elapse(durationNS int64) bool {
	return d.runUntil(d.currentTS + durationNS)
}

// WaitOrderResponse steps until the given order on the given asset has
// received a response (its local copy's Status or Req differs from when
// the call began, or the order first appears locally) or timeoutNS
// local-time has elapsed, whichever comes first.
// timeoutNS <= 0 means wait indefinitely (until end-of-data).
func (d *Driver) WaitOrderResponse(assetIdx int, id domain.OrderID, timeoutNS int64) bool {
	a := d.assets[assetIdx]
	target := int64(math.MaxInt64)
	if timeoutNS > 0 {
		target = d.currentTS + timeoutNS
	}

	before, hadBefore := a.Local.Order(id)
	for d.currentTS < target {
		if _, ok := d.step(); !ok {
			return false
		}
		after, hadAfter := a.Local.Order(id)
		if hadAfter && (!hadBefore || after.Status != before.Status || after.Req != before.Req) {
			return true
		}
	}
	return true
}

// WaitNextFeed steps until the next market-data row (optionally also
// counting inbound order responses) has been observed on any asset's
// local side, or timeoutNS elapses.
func (d *Driver) WaitNextFeed(includeOrderResp bool, timeoutNS int64) bool {
	target := int64(math.MaxInt64)
	if timeoutNS > 0 {
		target = d.currentTS + timeoutNS
	}
	for d.currentTS < target {
		cand, ok := d.next()
		if !ok {
			return false
		}
		if cand.isLocal {
			// A local step that drained order responses shrinks FromExch;
			// a data row leaves it unchanged.
			a := d.assets[cand.assetIdx]
			pending := a.Local.FromExch.Len()
			if _, ok := d.step(); !ok {
				return false
			}
			if includeOrderResp || a.Local.FromExch.Len() == pending {
				return true
			}
			continue
		}
		if _, ok := d.step(); !ok {
			return false
		}
	}
	return true
}

// SubmitBuyOrder and SubmitSellOrder forward to the asset's Local
// processor. The returned error is the synchronous submission error
// (per spec §7's DuplicateOrderId policy); when wait is set, whether the
// wait reached end-of-data is not reported.
func (d *Driver) SubmitBuyOrder(assetIdx int, id domain.OrderID, priceTick int64, qty float64, tif domain.TimeInForce, wait bool) error {
	err := d.assets[assetIdx].Local.SubmitBuyOrder(id, priceTick, qty, tif, d.currentTS)
	if err == nil && wait {
		d.WaitOrderResponse(assetIdx, id, 0)
	}
	return err
}

func (d *Driver) SubmitSellOrder(assetIdx int, id domain.OrderID, priceTick int64, qty float64, tif domain.TimeInForce, wait bool) error {
	err := d.assets[assetIdx].Local.SubmitSellOrder(id, priceTick, qty, tif, d.currentTS)
	if err == nil && wait {
		d.WaitOrderResponse(assetIdx, id, 0)
	}
	return err
}

// Cancel requests cancellation of a resting order, optionally blocking
// for its response.
func (d *Driver) Cancel(assetIdx int, id domain.OrderID, wait bool) error {
	err := d.assets[assetIdx].Local.Cancel(id, d.currentTS)
	if err == nil && wait {
		d.WaitOrderResponse(assetIdx, id, 0)
	}
	return err
}

// ModifyOrder requests a price/qty change on a resting order, optionally
// blocking for its response.
func (d *Driver) ModifyOrder(assetIdx int, id domain.OrderID, priceTick int64, qty float64, wait bool) error {
	err := d.assets[assetIdx].Local.ModifyOrder(id, priceTick, qty, d.currentTS)
	if err == nil && wait {
		d.WaitOrderResponse(assetIdx, id, 0)
	}
	return err
}

// ClearInactiveOrders drops terminal-state orders from an asset's local
// table.
func (d *Driver) ClearInactiveOrders(assetIdx int) {
	d.assets[assetIdx].Local.ClearInactiveOrders()
}

// ClearLastTrades empties an asset's recorded-fills ring buffer.
func (d *Driver) ClearLastTrades(assetIdx int) {
	d.assets[assetIdx].Exchange.State.ClearLastTrades()
}

// Depth returns the asset's local (strategy-visible) market depth.
func (d *Driver) Depth(assetIdx int) *marketdepth.Depth {
	return d.assets[assetIdx].Local.Depth
}

// Orders returns a snapshot of the asset's locally-tracked orders.
func (d *Driver) Orders(assetIdx int) map[domain.OrderID]domain.Order {
	return d.assets[assetIdx].Local.Orders()
}

// Position returns the asset's current position.
func (d *Driver) Position(assetIdx int) float64 {
	return d.assets[assetIdx].Exchange.State.Position
}

// StateValues returns the asset's portfolio ledger.
func (d *Driver) StateValues(assetIdx int) *domain.State {
	return d.assets[assetIdx].Exchange.State
}

// FeedLatency returns the (exch_ts, local_ts) pair of the asset's most
// recently processed data row.
func (d *Driver) FeedLatency(assetIdx int) (exchTS, localTS int64, ok bool) {
	return d.assets[assetIdx].Local.FeedLatency()
}

// OrderLatency returns the (req_ts, exch_ts, resp_ts) triplet of the
// asset's most recently received order response.
func (d *Driver) OrderLatency(assetIdx int) (reqTS, exchTS, respTS int64, ok bool) {
	return d.assets[assetIdx].Local.OrderLatency()
}
