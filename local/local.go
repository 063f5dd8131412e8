// Package local implements the Local Processor (spec §4.5): the
// strategy-facing side of an asset, holding its own read-only view of
// market depth and the order table the strategy actually queries.
package local

import (
	"fmt"

	"hftbacktest-go/bus"
	"hftbacktest-go/domain"
	"hftbacktest-go/latency"
	"hftbacktest-go/marketdepth"
)

// Reader is the same one-row-at-a-time, one-row-lookahead replay source
// used by exchange.Reader, scoped to local timestamps instead of
// exchange timestamps.
type Reader interface {
	Next() (domain.Event, bool)
	PeekNext() (domain.Event, bool)
}

// Processor is the Local-side half of the engine.
type Processor struct {
	reader   Reader
	peeked   domain.Event
	havePeek bool

	Depth *marketdepth.Depth
	State *domain.State

	ToExch   *bus.Bus
	FromExch *bus.Bus

	orderLatency latency.Model

	orders map[domain.OrderID]*domain.Order

	lastEvent      domain.Event
	haveLastEvent  bool
	lastOrderReqTS, lastOrderExchTS, lastOrderRespTS int64
	haveLastOrderLatency                             bool

	lastValidSample     latency.FeedSample
	haveLastValidSample bool
}

// New constructs a Local Processor.
func New(reader Reader, toExch, fromExch *bus.Bus, depth *marketdepth.Depth, state *domain.State, orderLatency latency.Model) *Processor {
	return &Processor{
		reader:       reader,
		Depth:        depth,
		State:        state,
		ToExch:       toExch,
		FromExch:     fromExch,
		orderLatency: orderLatency,
		orders:       make(map[domain.OrderID]*domain.Order),
	}
}

func (p *Processor) nextDataTimestamp() int64 {
	for !p.havePeek {
		ev, ok := p.reader.PeekNext()
		if !ok {
			return -2
		}
		if !ev.LocalValid() {
			p.reader.Next()
			continue
		}
		p.peeked, p.havePeek = ev, true
	}
	return p.peeked.LocalTS
}

// NextTimestamp reports when this processor would next have something to
// do, mirroring next_timestamp.
func (p *Processor) NextTimestamp() int64 {
	nextData := p.nextDataTimestamp()
	nextOrder := p.FromExch.FrontmostTimestamp()
	if (0 < nextOrder && nextOrder < nextData) || (nextData <= 0 && 0 < nextOrder) {
		return nextOrder
	}
	return nextData
}

// Process advances by one unit of work: a batch of exchange responses, or
// one local-timestamped data row.
func (p *Processor) Process() {
	nextData := p.nextDataTimestamp()
	nextOrder := p.FromExch.FrontmostTimestamp()
	if (0 < nextOrder && nextOrder < nextData) || (nextData <= 0 && 0 < nextOrder) {
		p.processRecvOrder()
		return
	}
	p.processData()
}

// processRecvOrder merges every exchange response due now into the local
// order table and records the order-latency triplet of the last one.
// State is not touched here: per SPEC_FULL §12, State.Apply runs once,
// on the exchange side, so a fill is never counted twice.
func (p *Processor) processRecvOrder() {
	respTS := p.FromExch.FrontmostTimestamp()
	for _, resp := range p.FromExch.DrainFrontmost() {
		order := resp
		p.orders[order.ID] = &order
		p.lastOrderReqTS = order.LocalTimestamp
		p.lastOrderExchTS = order.ExchTimestamp
		p.lastOrderRespTS = respTS
		p.haveLastOrderLatency = true
	}
}

func (p *Processor) processData() {
	ev, ok := p.reader.Next()
	p.havePeek = false
	if !ok {
		return
	}

	p.lastEvent, p.haveLastEvent = ev, true
	p.advanceFeedLatency(ev)

	switch ev.Kind.Kind() {
	case domain.EventDepthClear:
		p.Depth.ClearDepth(ev.Side, ev.Price)
	case domain.EventDepthUpdate, domain.EventDepthSnapshot:
		if ev.Side == domain.SideBuy {
			p.Depth.UpdateBidDepth(ev.Price, ev.Qty, ev.LocalTS, nil)
		} else {
			p.Depth.UpdateAskDepth(ev.Price, ev.Qty, ev.LocalTS, nil)
		}
	}
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

// SubmitBuyOrder enters a new buy order, stamping its entry latency and
// handing it to the exchange-bound bus. Returns
// domain.ErrDuplicateOrderID if id is already tracked locally.
func (p *Processor) SubmitBuyOrder(id domain.OrderID, priceTick int64, qty float64, tif domain.TimeInForce, now int64) error {
	return p.submit(id, domain.SideBuy, priceTick, qty, tif, now)
}

// SubmitSellOrder is the sell-side mirror of SubmitBuyOrder.
func (p *Processor) SubmitSellOrder(id domain.OrderID, priceTick int64, qty float64, tif domain.TimeInForce, now int64) error {
	return p.submit(id, domain.SideSell, priceTick, qty, tif, now)
}

// submit rejects a duplicate order_id before touching the latency path,
// per spec §7 (DuplicateOrderId is surfaced synchronously). A negative
// entry latency means the request never reaches the exchange: a
// REJECTED reply is synthesized directly onto the exchange-to-local bus
// at local_ts + |entry_latency|, mirroring the LatencyRejection policy.
func (p *Processor) submit(id domain.OrderID, side domain.Side, priceTick int64, qty float64, tif domain.TimeInForce, now int64) error {
	if _, exists := p.orders[id]; exists {
		return domain.ErrDuplicateOrderID
	}

	order := domain.NewOrder(id, side, priceTick, qty, tif, domain.OrderTypeLimit)
	order.LocalTimestamp = now
	entryLatency := p.orderLatency.Entry(now, &order)

	if entryLatency < 0 {
		order.Status = domain.StatusRejected
		order.Req = domain.ReqNone
		recvTS := now - entryLatency
		p.orders[id] = &order
		p.FromExch.Append(order, recvTS)
		return nil
	}

	p.orders[id] = &order
	p.ToExch.Append(order, now+entryLatency)
	return nil
}

// Cancel requests cancellation of a resting local order. Returns
// domain.ErrUnknownOrderID / domain.ErrOngoingRequestConflict on
// precondition failure, mirroring cancel's KeyError/ValueError.
func (p *Processor) Cancel(id domain.OrderID, now int64) error {
	order, ok := p.orders[id]
	if !ok {
		return domain.ErrUnknownOrderID
	}
	if order.Req != domain.ReqNone {
		return domain.ErrOngoingRequestConflict
	}

	order.Req = domain.ReqCanceled
	recvTS := now + p.orderLatency.Entry(now, order)
	p.ToExch.Append(*order, recvTS)
	return nil
}

// ModifyOrder requests a price/qty change on a resting local order,
// analogous to Cancel's precondition checks. The exchange-bound copy
// carries the new price/qty; the live local copy keeps its current values
// until the exchange's ack_modify reply is merged in processRecvOrder.
func (p *Processor) ModifyOrder(id domain.OrderID, priceTick int64, qty float64, now int64) error {
	order, ok := p.orders[id]
	if !ok {
		return domain.ErrUnknownOrderID
	}
	if order.Req != domain.ReqNone {
		return domain.ErrOngoingRequestConflict
	}

	order.Req = domain.ReqModify
	req := *order
	req.PriceTick = priceTick
	req.Qty = qty
	recvTS := now + p.orderLatency.Entry(now, order)
	p.ToExch.Append(req, recvTS)
	return nil
}

// ClearInactiveOrders drops every order in a terminal state from the
// local table, mirroring clear_inactive_orders.
func (p *Processor) ClearInactiveOrders() {
	for id, o := range p.orders {
		if o.IsTerminal() {
			delete(p.orders, id)
		}
	}
}

// Order looks up a local order by ID.
func (p *Processor) Order(id domain.OrderID) (domain.Order, bool) {
	o, ok := p.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Orders returns a snapshot of every tracked local order, keyed by ID.
func (p *Processor) Orders() map[domain.OrderID]domain.Order {
	out := make(map[domain.OrderID]domain.Order, len(p.orders))
	for id, o := range p.orders {
		out[id] = *o
	}
	return out
}

// FeedLatency returns the (exch_ts, local_ts) pair of the most recently
// processed data row, for the strategy-visible feed_latency(asset)
// accessor.
func (p *Processor) FeedLatency() (exchTS, localTS int64, ok bool) {
	if !p.haveLastEvent {
		return 0, 0, false
	}
	return p.lastEvent.ExchTS, p.lastEvent.LocalTS, true
}

// OrderLatency returns the (req_ts, exch_ts, resp_ts) triplet of the most
// recently received order response, for the strategy-visible
// order_latency(asset) accessor.
func (p *Processor) OrderLatency() (reqTS, exchTS, respTS int64, ok bool) {
	if !p.haveLastOrderLatency {
		return 0, 0, 0, false
	}
	return p.lastOrderReqTS, p.lastOrderExchTS, p.lastOrderRespTS, true
}

// Reset clears all local order state and buses for a fresh run.
func (p *Processor) Reset() {
	p.orders = make(map[domain.OrderID]*domain.Order)
	p.ToExch.Reset()
	p.FromExch.Reset()
	p.orderLatency.Reset()
	p.havePeek = false
	p.haveLastEvent = false
	p.haveLastOrderLatency = false
	p.haveLastValidSample = false
}

func (p *Processor) String() string {
	return fmt.Sprintf("local.Processor{orders=%d}", len(p.orders))
}
