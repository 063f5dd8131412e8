// Package exchange implements the Exchange Processor (spec §4.4): it owns
// the authoritative market depth, the resting-order ladders, and is the
// only component that ever marks an order Filled.
package exchange

import (
	"github.com/emirpasic/gods/v2/trees/redblacktree"

	"hftbacktest-go/bus"
	"hftbacktest-go/domain"
	"hftbacktest-go/latency"
	"hftbacktest-go/marketdepth"
	"hftbacktest-go/queue"
)

// Reader is the minimal replay source the processor steps through: one
// canonical row at a time, with one row of lookahead so next_timestamp
// can answer without blocking on IO. Concretely satisfied by
// *reader.DataReader.
type Reader interface {
	Next() (domain.Event, bool)
	PeekNext() (domain.Event, bool)
}

// ladder is a price-ordered map from price tick to the orders resting at
// that tick, keyed in turn by order ID. Ordered by price tick via
// redblacktree so a best-price jump (on_best_bid_update/on_best_ask_update)
// can bound its tick-by-tick walk over the crossed levels, in the manner
// of the source's `for t in range(prev_best+1, new_best+1)`, by the
// lowest or highest resting tick (the tree's Left/Right) instead of
// walking from a no-best sentinel.
type ladder struct {
	tree *redblacktree.Tree[int64, map[domain.OrderID]*domain.Order]
}

func newLadder() *ladder {
	return &ladder{tree: redblacktree.New[int64, map[domain.OrderID]*domain.Order]()}
}

func (l *ladder) insert(tick int64, o *domain.Order) {
	level, ok := l.tree.Get(tick)
	if !ok {
		level = make(map[domain.OrderID]*domain.Order)
		l.tree.Put(tick, level)
	}
	level[o.ID] = o
}

func (l *ladder) remove(tick int64, id domain.OrderID) {
	level, ok := l.tree.Get(tick)
	if !ok {
		return
	}
	delete(level, id)
	if len(level) == 0 {
		l.tree.Remove(tick)
	}
}

func (l *ladder) at(tick int64) (map[domain.OrderID]*domain.Order, bool) {
	return l.tree.Get(tick)
}

// Processor is the Exchange-side half of the engine. It satisfies
// marketdepth.Callback so Depth.Update{Bid,Ask}Depth can drive queue-model
// and crossed-book fills without holding a reference back to this type —
// the callback methods are called with the processor as an explicit
// argument, not captured by the Depth.
type Processor struct {
	reader Reader
	peeked domain.Event
	havePeek bool

	Depth *marketdepth.Depth
	State *domain.State

	ToLocal   *bus.Bus
	FromLocal *bus.Bus

	orderLatency latency.Model
	queueModel   queue.Model

	orders    map[domain.OrderID]*domain.Order
	buyOrders *ladder
	sellOrders *ladder

	waitRespID domain.OrderID
	waitResp   bool

	lastValidSample     latency.FeedSample
	haveLastValidSample bool
}

// New constructs an Exchange Processor wired to one reader, one pair of
// order buses, a fresh depth/state, and the latency/queue strategies
// chosen for this asset.
func New(
	reader Reader,
	toLocal, fromLocal *bus.Bus,
	depth *marketdepth.Depth,
	state *domain.State,
	orderLatency latency.Model,
	queueModel queue.Model,
) *Processor {
	return &Processor{
		reader:     reader,
		Depth:      depth,
		State:      state,
		ToLocal:    toLocal,
		FromLocal:  fromLocal,
		orderLatency: orderLatency,
		queueModel: queueModel,
		orders:     make(map[domain.OrderID]*domain.Order),
		buyOrders:  newLadder(),
		sellOrders: newLadder(),
	}
}

func (p *Processor) nextDataTimestamp() int64 {
	for !p.havePeek {
		ev, ok := p.reader.PeekNext()
		if !ok {
			return -2
		}
		if !ev.ExchValid() {
			p.reader.Next()
			continue
		}
		p.peeked, p.havePeek = ev, true
	}
	return p.peeked.ExchTS
}

// NextTimestamp reports when this processor would next have something to
// do: the earlier of its next data row and the frontmost pending order
// from Local, per spec §4.7's "earliest of both sides" driver rule.
func (p *Processor) NextTimestamp() int64 {
	nextData := p.nextDataTimestamp()
	nextOrder := p.FromLocal.FrontmostTimestamp()
	if (0 < nextOrder && nextOrder < nextData) || (nextData <= 0 && 0 < nextOrder) {
		return nextOrder
	}
	return nextData
}

// Process advances the processor by exactly one unit of work (one pending
// order batch, or one data row), returning the local-recv timestamp of a
// response to waitRespID if one was produced, else 0.
func (p *Processor) Process(waitRespID domain.OrderID, waiting bool) int64 {
	nextData := p.nextDataTimestamp()
	nextOrder := p.FromLocal.FrontmostTimestamp()
	if (0 < nextOrder && nextOrder < nextData) || (nextData <= 0 && 0 < nextOrder) {
		return p.processRecvOrder(waitRespID, waiting)
	}
	return p.processData()
}

func (p *Processor) processRecvOrder(waitRespID domain.OrderID, waiting bool) int64 {
	recvTS := p.FromLocal.FrontmostTimestamp()
	var respTS int64
	for _, o := range p.FromLocal.DrainFrontmost() {
		order := o
		var r int64
		switch order.Req {
		case domain.ReqNew:
			order.Req = domain.ReqNone
			r = p.ackNew(&order, recvTS)
		case domain.ReqCanceled:
			order.Req = domain.ReqNone
			r = p.ackCancel(&order, recvTS)
		case domain.ReqModify:
			order.Req = domain.ReqNone
			r = p.ackModify(&order, recvTS)
		}
		if waiting && order.ID == waitRespID {
			respTS = r
		}
	}
	return respTS
}

func (p *Processor) processData() int64 {
	ev, ok := p.reader.Next()
	p.havePeek = false
	if !ok {
		return 0
	}

	p.advanceFeedLatency(ev)

	switch ev.Kind.Kind() {
	case domain.EventDepthClear:
		p.Depth.ClearDepth(ev.Side, ev.Price)
	case domain.EventDepthUpdate, domain.EventDepthSnapshot:
		if ev.Side == domain.SideBuy {
			p.Depth.UpdateBidDepth(ev.Price, ev.Qty, ev.ExchTS, p)
		} else {
			p.Depth.UpdateAskDepth(ev.Price, ev.Qty, ev.ExchTS, p)
		}
	case domain.EventTrade:
		p.processTrade(ev)
	}
	return 0
}

// advanceFeedLatency feeds a FeedDerived latency model (spec §4.7) the
// nearest valid (exch_ts, local_ts) sample behind and ahead of the row
// just consumed, using the reader's own one-row lookahead for "ahead" —
// a no-op for any other Model, since Advance isn't part of that
// interface.
func (p *Processor) advanceFeedLatency(ev domain.Event) {
	fd, ok := p.orderLatency.(latency.Advancer)
	if !ok {
		return
	}

	var nextSample latency.FeedSample
	next, hasNext := p.reader.PeekNext()
	nextValid := hasNext && next.ExchTS != domain.NoTimestamp && next.LocalTS != domain.NoTimestamp
	if nextValid {
		nextSample = latency.FeedSample{LocalTS: next.LocalTS, ExchTS: next.ExchTS}
	}

	fd.Advance(p.lastValidSample, nextSample, p.haveLastValidSample, nextValid)

	if ev.ExchTS != domain.NoTimestamp && ev.LocalTS != domain.NoTimestamp {
		p.lastValidSample = latency.FeedSample{LocalTS: ev.LocalTS, ExchTS: ev.ExchTS}
		p.haveLastValidSample = true
	}
}

// processTrade mirrors __process_data's TRADE_EVENT branch: a public
// trade print can only fill a resting order at or behind the traded
// price, walking price-by-price from the current best toward the trade
// price. Orders strictly better than the trade price are swept entirely
// (the trade must have consumed them); the order exactly at the trade
// price gets a queue-model trade update and is filled only if the model
// says its queue position has been exhausted.
func (p *Processor) processTrade(ev domain.Event) {
	priceTick := domain.PriceToTick(ev.Price, p.Depth.TickSize)
	if ev.Side == domain.SideBuy {
		if p.Depth.BestBidTick() == domain.InvalidMinTick {
			return
		}
		for t := p.Depth.BestBidTick() + 1; t <= priceTick; t++ {
			level, ok := p.sellOrders.at(t)
			if !ok {
				continue
			}
			for _, order := range snapshotLevel(level) {
				if order.PriceTick < priceTick {
					p.fill(order, ev.ExchTS, order.PriceTick, order.LeavesQty, true, true)
				} else if order.PriceTick == priceTick {
					p.queueModel.Trade(order, ev.Qty, p)
					if p.queueModel.IsFilled(order, p) {
						p.fill(order, ev.ExchTS, order.PriceTick, tradeExecQty(ev.Qty, order, p.Depth.LotSize), true, true)
					}
				}
			}
		}
	} else {
		if p.Depth.BestAskTick() == domain.InvalidMaxTick {
			return
		}
		for t := p.Depth.BestAskTick() - 1; t >= priceTick; t-- {
			level, ok := p.buyOrders.at(t)
			if !ok {
				continue
			}
			for _, order := range snapshotLevel(level) {
				if order.PriceTick > priceTick {
					p.fill(order, ev.ExchTS, order.PriceTick, order.LeavesQty, true, true)
				} else if order.PriceTick == priceTick {
					p.queueModel.Trade(order, ev.Qty, p)
					if p.queueModel.IsFilled(order, p) {
						p.fill(order, ev.ExchTS, order.PriceTick, tradeExecQty(ev.Qty, order, p.Depth.LotSize), true, true)
					}
				}
			}
		}
	}
}

// tradeExecQty caps how much of a resting order a single trade print can
// account for (spec §4.4's partial-fill-variant note: "exec_qty =
// min(q-implied qty, trade_qty, leaves_qty)"). The q-implied qty is how
// far the trade pushed the order's queue model past its own position:
// once queueModel.Trade has driven Q0 negative, -Q0 (floored to whole
// lots) is the share of this trade print that landed at or behind the
// order, which may itself be smaller than the trade's own quantity.
func tradeExecQty(tradeQty float64, o *domain.Order, lotSize float64) float64 {
	qImpliedQty := domain.FloorQtyToLots(-o.Q0, lotSize)
	execQty := qImpliedQty
	if tradeQty < execQty {
		execQty = tradeQty
	}
	if o.LeavesQty < execQty {
		execQty = o.LeavesQty
	}
	return execQty
}

// snapshotLevel copies the current order pointers at a level before
// iterating, since fill() mutates the very map being ranged over (mirrors
// the source's `list(...)` defensive copy).
func snapshotLevel(level map[domain.OrderID]*domain.Order) []*domain.Order {
	out := make([]*domain.Order, 0, len(level))
	for _, o := range level {
		out = append(out, o)
	}
	return out
}

// --- marketdepth.Callback ---

func (p *Processor) OnBidQtyChg(priceTick int64, prevQty, newQty float64, ts int64) {
	if level, ok := p.buyOrders.at(priceTick); ok {
		for _, order := range level {
			p.queueModel.Depth(order, prevQty, newQty, p)
		}
	}
}

func (p *Processor) OnAskQtyChg(priceTick int64, prevQty, newQty float64, ts int64) {
	if level, ok := p.sellOrders.at(priceTick); ok {
		for _, order := range level {
			p.queueModel.Depth(order, prevQty, newQty, p)
		}
	}
}

func (p *Processor) OnBestBidUpdate(prevTick, newTick int64, ts int64) {
	lowest := p.sellOrders.tree.Left()
	if lowest == nil {
		return
	}
	from := prevTick + 1
	if lowest.Key > from {
		from = lowest.Key
	}
	for t := from; t <= newTick; t++ {
		level, ok := p.sellOrders.at(t)
		if !ok {
			continue
		}
		for _, order := range snapshotLevel(level) {
			p.fill(order, ts, order.PriceTick, order.LeavesQty, true, true)
		}
	}
}

func (p *Processor) OnBestAskUpdate(prevTick, newTick int64, ts int64) {
	highest := p.buyOrders.tree.Right()
	if highest == nil {
		return
	}
	to := prevTick - 1
	if highest.Key < to {
		to = highest.Key
	}
	for t := newTick; t <= to; t++ {
		level, ok := p.buyOrders.at(t)
		if !ok {
			continue
		}
		for _, order := range snapshotLevel(level) {
			p.fill(order, ts, order.PriceTick, order.LeavesQty, true, true)
		}
	}
}

// --- queue.DepthView ---

func (p *Processor) BidQty(tick int64) float64 { return p.Depth.BidQty(tick) }
func (p *Processor) AskQty(tick int64) float64 { return p.Depth.AskQty(tick) }
func (p *Processor) LotSize() float64          { return p.Depth.LotSize }

// availableAskLiquidity sums resting ask quantity from the current best
// through limitTick inclusive, and availableBidLiquidity the bid-side
// mirror. These only measure how much of an aggressive order's limit the
// book could satisfy; they never remove anything from Depth, since user
// orders must never consume book liquidity for subsequent events (spec §1
// Non-goals).
func (p *Processor) availableAskLiquidity(limitTick int64) float64 {
	total := 0.0
	for t := p.Depth.BestAskTick(); t <= limitTick; t++ {
		total += p.Depth.AskQty(t)
	}
	return total
}

func (p *Processor) availableBidLiquidity(limitTick int64) float64 {
	total := 0.0
	for t := p.Depth.BestBidTick(); t >= limitTick; t-- {
		total += p.Depth.BidQty(t)
	}
	return total
}

// ackNew accepts or rejects a new order against the current book, mirroring
// __ack_new. A GTX order crossing the book expires instead of taking the
// market; FOK expires outright if the book can't cover it; IOC takes
// whatever liquidity is available and expires the residual; GTC takes
// available liquidity and force-fills any residual at its own limit price
// (SPEC_FULL §12's open-question decision) rather than resting it.
func (p *Processor) ackNew(o *domain.Order, ts int64) int64 {
	var respTS int64
	if o.Side == domain.SideBuy {
		if o.PriceTick >= p.Depth.BestAskTick() {
			if o.TIF == domain.TIFGTX {
				o.Status = domain.StatusExpired
				o.ExchTimestamp = ts
				respTS = ts + p.orderLatency.Response(ts, o)
				p.ToLocal.Append(*o, respTS)
				return respTS
			}
			avail := p.availableAskLiquidity(o.PriceTick)
			if o.TIF == domain.TIFFOK && avail < o.Qty {
				o.Status = domain.StatusExpired
				o.ExchTimestamp = ts
				respTS = ts + p.orderLatency.Response(ts, o)
				p.ToLocal.Append(*o, respTS)
				return respTS
			}
			return p.ackNewCrossed(o, ts)
		}
		p.orders[o.ID] = o
		p.buyOrders.insert(o.PriceTick, o)
		p.queueModel.New(o, p)
		o.Status = domain.StatusNew
	} else {
		if o.PriceTick <= p.Depth.BestBidTick() {
			if o.TIF == domain.TIFGTX {
				o.Status = domain.StatusExpired
				o.ExchTimestamp = ts
				respTS = ts + p.orderLatency.Response(ts, o)
				p.ToLocal.Append(*o, respTS)
				return respTS
			}
			avail := p.availableBidLiquidity(o.PriceTick)
			if o.TIF == domain.TIFFOK && avail < o.Qty {
				o.Status = domain.StatusExpired
				o.ExchTimestamp = ts
				respTS = ts + p.orderLatency.Response(ts, o)
				p.ToLocal.Append(*o, respTS)
				return respTS
			}
			return p.ackNewCrossed(o, ts)
		}
		p.orders[o.ID] = o
		p.sellOrders.insert(o.PriceTick, o)
		p.queueModel.New(o, p)
		o.Status = domain.StatusNew
	}
	o.ExchTimestamp = ts
	respTS = ts + p.orderLatency.Response(ts, o)
	p.ToLocal.Append(*o, respTS)
	return respTS
}

// ackNewCrossed executes an order that crossed the book on arrival, walking
// the opposite side level by level the way __ack_new does in
// original_source (one __fill call, and one reply, per level consumed) —
// never mutating Depth itself, since user orders must not affect the book
// seen by subsequent events (spec §1's no-market-impact Non-goal). IOC/FOK
// take only what the walk finds and expire the residual; GTC force-fills
// any residual at the order's own limit price rather than leaving it
// resting, per the open-question decision recorded in SPEC_FULL §12 and
// DESIGN.md.
func (p *Processor) ackNewCrossed(o *domain.Order, ts int64) int64 {
	o.Maker = false
	var respTS int64

	if o.Side == domain.SideBuy {
		for t := p.Depth.BestAskTick(); t <= o.PriceTick && !domain.IsZeroQty(o.LeavesQty, p.Depth.LotSize); t++ {
			levelQty := p.Depth.AskQty(t)
			if domain.IsZeroQty(levelQty, p.Depth.LotSize) {
				continue
			}
			execQty := levelQty
			if execQty > o.LeavesQty {
				execQty = o.LeavesQty
			}
			respTS = p.fill(o, ts, t, execQty, false, false)
		}
	} else {
		for t := p.Depth.BestBidTick(); t >= o.PriceTick && !domain.IsZeroQty(o.LeavesQty, p.Depth.LotSize); t-- {
			levelQty := p.Depth.BidQty(t)
			if domain.IsZeroQty(levelQty, p.Depth.LotSize) {
				continue
			}
			execQty := levelQty
			if execQty > o.LeavesQty {
				execQty = o.LeavesQty
			}
			respTS = p.fill(o, ts, t, execQty, false, false)
		}
	}

	if domain.IsZeroQty(o.LeavesQty, p.Depth.LotSize) {
		return respTS
	}

	if o.TIF == domain.TIFGTC {
		return p.fill(o, ts, o.PriceTick, o.LeavesQty, false, false)
	}

	// IOC: the unfilled residual does not rest; the order expires with
	// whatever partial quantity already executed above.
	o.Status = domain.StatusExpired
	o.ExchTimestamp = ts
	respTS = ts + p.orderLatency.Response(ts, o)
	p.ToLocal.Append(*o, respTS)
	return respTS
}

// ackCancel mirrors __ack_cancel: an order already gone (filled or
// expired before the cancel arrived) reports Expired rather than erroring,
// since the local side has no way to distinguish "too late" from a wire
// fault.
func (p *Processor) ackCancel(o *domain.Order, ts int64) int64 {
	exch, ok := p.orders[o.ID]
	if !ok {
		o.Status = domain.StatusExpired
		o.ExchTimestamp = ts
		respTS := ts + p.orderLatency.Response(ts, o)
		p.ToLocal.Append(*o, respTS)
		return respTS
	}

	delete(p.orders, exch.ID)
	if exch.Side == domain.SideBuy {
		p.buyOrders.remove(exch.PriceTick, exch.ID)
	} else {
		p.sellOrders.remove(exch.PriceTick, exch.ID)
	}

	exch.Status = domain.StatusCanceled
	exch.ExchTimestamp = ts
	respTS := ts + p.orderLatency.Response(ts, exch)
	p.ToLocal.Append(*exch, respTS)
	return respTS
}

// fill executes against an order for execQty (capped at o.LeavesQty),
// leaving it PartiallyFilled if quantity remains or Filled once leaves_qty
// rounds to zero lots — the partial-fill variant's fill procedure (spec
// §4.4). resting removes the order from the ladders/order table on a
// terminal fill; a crossing taker fill (ackNewCrossed) was never inserted
// into either, so it passes resting=false.
func (p *Processor) fill(o *domain.Order, ts int64, execPriceTick int64, execQty float64, maker bool, resting bool) int64 {
	o.Maker = maker
	o.ExecPriceTick = execPriceTick
	if execQty > o.LeavesQty {
		execQty = o.LeavesQty
	}
	o.ExecQty = execQty
	o.LeavesQty -= execQty
	if domain.IsZeroQty(o.LeavesQty, p.Depth.LotSize) {
		o.LeavesQty = 0
		o.Status = domain.StatusFilled
	} else {
		o.Status = domain.StatusPartiallyFilled
	}
	o.ExchTimestamp = ts
	respTS := ts + p.orderLatency.Response(ts, o)

	if resting && o.Status == domain.StatusFilled {
		delete(p.orders, o.ID)
		if o.Side == domain.SideBuy {
			p.buyOrders.remove(o.PriceTick, o.ID)
		} else {
			p.sellOrders.remove(o.PriceTick, o.ID)
		}
	}

	p.State.Apply(o, p.Depth.TickSize)
	p.State.RecordTrade(domain.Event{
		Kind:    domain.EventTrade,
		ExchTS:  ts,
		LocalTS: domain.NoTimestamp,
		Side:    o.Side,
		Price:   o.ExecPrice(p.Depth.TickSize),
		Qty:     o.ExecQty,
	})
	p.ToLocal.Append(*o, respTS)
	return respTS
}

// ackModify mirrors __ack_modify: replace the exchange copy's price/qty,
// expire it if the newly requested qty no longer covers what's already
// executed, re-run ack_new's crossing logic if the new price now crosses
// the book, and otherwise reposition it in its ladder bucket and
// reinitialize its queue position if the price changed.
func (p *Processor) ackModify(o *domain.Order, ts int64) int64 {
	exch, ok := p.orders[o.ID]
	if !ok {
		o.Status = domain.StatusExpired
		o.ExchTimestamp = ts
		respTS := ts + p.orderLatency.Response(ts, o)
		p.ToLocal.Append(*o, respTS)
		return respTS
	}

	cumulativeExecuted := exch.Qty - exch.LeavesQty
	if o.Qty <= cumulativeExecuted {
		delete(p.orders, exch.ID)
		if exch.Side == domain.SideBuy {
			p.buyOrders.remove(exch.PriceTick, exch.ID)
		} else {
			p.sellOrders.remove(exch.PriceTick, exch.ID)
		}
		exch.Status = domain.StatusExpired
		exch.ExchTimestamp = ts
		respTS := ts + p.orderLatency.Response(ts, exch)
		p.ToLocal.Append(*exch, respTS)
		return respTS
	}

	prevTick := exch.PriceTick
	priceChanged := o.PriceTick != prevTick
	exch.PriceTick = o.PriceTick
	exch.Qty = o.Qty
	exch.LeavesQty = o.Qty - cumulativeExecuted

	crosses := (exch.Side == domain.SideBuy && exch.PriceTick >= p.Depth.BestAskTick()) ||
		(exch.Side == domain.SideSell && exch.PriceTick <= p.Depth.BestBidTick())

	if crosses {
		delete(p.orders, exch.ID)
		if exch.Side == domain.SideBuy {
			p.buyOrders.remove(prevTick, exch.ID)
		} else {
			p.sellOrders.remove(prevTick, exch.ID)
		}
		return p.ackNew(exch, ts)
	}

	if priceChanged {
		if exch.Side == domain.SideBuy {
			p.buyOrders.remove(prevTick, exch.ID)
			p.buyOrders.insert(exch.PriceTick, exch)
		} else {
			p.sellOrders.remove(prevTick, exch.ID)
			p.sellOrders.insert(exch.PriceTick, exch)
		}
		p.queueModel.New(exch, p)
	}

	exch.Status = domain.StatusNew
	exch.ExchTimestamp = ts
	respTS := ts + p.orderLatency.Response(ts, exch)
	p.ToLocal.Append(*exch, respTS)
	return respTS
}

// Reset clears all resting orders, buses, and state for a fresh run,
// keeping the wired depth/state/latency/queue-model instances.
func (p *Processor) Reset() {
	p.orders = make(map[domain.OrderID]*domain.Order)
	p.buyOrders = newLadder()
	p.sellOrders = newLadder()
	p.ToLocal.Reset()
	p.FromLocal.Reset()
	p.queueModel.Reset()
	p.orderLatency.Reset()
	p.havePeek = false
	p.haveLastValidSample = false
}
