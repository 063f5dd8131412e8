package local

import (
	"testing"

	"hftbacktest-go/bus"
	"hftbacktest-go/domain"
	"hftbacktest-go/latency"
	"hftbacktest-go/marketdepth"
)

type emptyReader struct{}

func (emptyReader) Next() (domain.Event, bool)     { return domain.Event{}, false }
func (emptyReader) PeekNext() (domain.Event, bool) { return domain.Event{}, false }

func newTestProcessor(entryLatency int64) *Processor {
	depth := marketdepth.New(0.1, 0.1)
	state := domain.NewState(0, 0, 0, 0, 0, domain.Linear{}, 10, false)
	toExch, fromExch := bus.New(), bus.New()
	return New(emptyReader{}, toExch, fromExch, depth, state, latency.Constant{EntryLatency: entryLatency})
}

func TestSubmitBuyOrderQueuesOnToExchBus(t *testing.T) {
	p := newTestProcessor(10)
	if err := p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ToExch.Len() != 1 {
		t.Fatalf("expected one pending request, got %d", p.ToExch.Len())
	}
	if p.ToExch.FrontmostTimestamp() != 1010 {
		t.Fatalf("expected receive_ts 1010, got %d", p.ToExch.FrontmostTimestamp())
	}
	o, ok := p.Order(1)
	if !ok || o.Side != domain.SideBuy {
		t.Fatal("expected the order tracked locally as a buy")
	}
}

func TestSubmitDuplicateOrderIDRejected(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	if err := p.SubmitSellOrder(1, 200, 1.0, domain.TIFGTC, 1000); err != domain.ErrDuplicateOrderID {
		t.Fatalf("expected ErrDuplicateOrderID, got %v", err)
	}
}

// A negative entry latency synthesizes a rejection directly on the
// exchange-to-local bus instead of a round trip (spec §7).
func TestSubmitWithNegativeLatencySynthesizesRejection(t *testing.T) {
	p := newTestProcessor(-10)
	if err := p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ToExch.Len() != 0 {
		t.Fatal("expected nothing sent to the exchange on a negative-latency reject")
	}
	if p.FromExch.Len() != 1 {
		t.Fatalf("expected a synthesized reply on the from-exch bus, got %d", p.FromExch.Len())
	}
	if p.FromExch.FrontmostTimestamp() != 1010 {
		t.Fatalf("expected reject receive_ts 1010, got %d", p.FromExch.FrontmostTimestamp())
	}
	o, _ := p.Order(1)
	if o.Status != domain.StatusRejected {
		t.Fatalf("expected Rejected status, got %v", o.Status)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	p := newTestProcessor(10)
	if err := p.Cancel(99, 1000); err != domain.ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID, got %v", err)
	}
}

func TestCancelConflictsWithOngoingRequest(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	// The order is still mid-flight (Req == ReqNew) until an ack lands.
	if err := p.Cancel(1, 1000); err != domain.ErrOngoingRequestConflict {
		t.Fatalf("expected ErrOngoingRequestConflict, got %v", err)
	}
}

func TestCancelSucceedsOnce(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	o, _ := p.Order(1)
	o.Req = domain.ReqNone
	p.orders[1] = &o

	if err := p.Cancel(1, 2000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ToExch.Len() != 2 {
		t.Fatalf("expected the cancel request queued behind the new order, got %d", p.ToExch.Len())
	}
}

func TestModifyUnknownOrder(t *testing.T) {
	p := newTestProcessor(10)
	if err := p.ModifyOrder(99, 100, 1.0, 1000); err != domain.ErrUnknownOrderID {
		t.Fatalf("expected ErrUnknownOrderID, got %v", err)
	}
}

func TestModifyConflictsWithOngoingRequest(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	// The order is still mid-flight (Req == ReqNew) until an ack lands.
	if err := p.ModifyOrder(1, 110, 2.0, 1000); err != domain.ErrOngoingRequestConflict {
		t.Fatalf("expected ErrOngoingRequestConflict, got %v", err)
	}
}

func TestModifySucceedsOnceAndLeavesLocalCopyUntouched(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	o, _ := p.Order(1)
	o.Req = domain.ReqNone
	p.orders[1] = &o

	if err := p.ModifyOrder(1, 110, 2.0, 2000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ToExch.Len() != 2 {
		t.Fatalf("expected the modify request queued behind the new order, got %d", p.ToExch.Len())
	}
	if p.ToExch.FrontmostTimestamp() != 1010 {
		t.Fatalf("expected the original submit still frontmost at 1010, got %d", p.ToExch.FrontmostTimestamp())
	}

	// The live local copy keeps its original price/qty until the
	// exchange's ack_modify reply is merged by processRecvOrder.
	live, _ := p.Order(1)
	if live.PriceTick != 100 || live.Qty != 1.0 {
		t.Fatalf("expected the local copy unchanged until ack, got tick=%d qty=%v", live.PriceTick, live.Qty)
	}
	if live.Req != domain.ReqModify {
		t.Fatalf("expected Req marked ReqModify while in flight, got %v", live.Req)
	}

	// A second modify before the first acks conflicts.
	if err := p.ModifyOrder(1, 120, 3.0, 2000); err != domain.ErrOngoingRequestConflict {
		t.Fatalf("expected ErrOngoingRequestConflict on a second in-flight modify, got %v", err)
	}
}

// Testable property 8: ClearInactiveOrders is idempotent.
func TestClearInactiveOrdersIdempotent(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	o, _ := p.Order(1)
	o.Status = domain.StatusFilled
	p.orders[1] = &o

	p.ClearInactiveOrders()
	if len(p.Orders()) != 0 {
		t.Fatal("expected the terminal order removed")
	}
	p.ClearInactiveOrders()
	if len(p.Orders()) != 0 {
		t.Fatal("expected a second call to be a no-op")
	}
}

func TestFeedLatencyAndOrderLatencyAccessors(t *testing.T) {
	p := newTestProcessor(10)
	if _, _, ok := p.FeedLatency(); ok {
		t.Fatal("expected no feed latency before any data row processed")
	}
	if _, _, _, ok := p.OrderLatency(); ok {
		t.Fatal("expected no order latency before any response received")
	}

	p.lastEvent = domain.Event{ExchTS: 100, LocalTS: 150}
	p.haveLastEvent = true
	exchTS, localTS, ok := p.FeedLatency()
	if !ok || exchTS != 100 || localTS != 150 {
		t.Fatalf("expected (100,150), got (%d,%d) ok=%v", exchTS, localTS, ok)
	}
}

func TestResetClearsOrdersAndLatencyHistory(t *testing.T) {
	p := newTestProcessor(10)
	p.SubmitBuyOrder(1, 100, 1.0, domain.TIFGTC, 1000)
	p.lastEvent, p.haveLastEvent = domain.Event{ExchTS: 1}, true

	p.Reset()
	if len(p.Orders()) != 0 {
		t.Fatal("expected no orders after Reset")
	}
	if _, _, ok := p.FeedLatency(); ok {
		t.Fatal("expected feed latency cleared after Reset")
	}
	if p.ToExch.Len() != 0 || p.FromExch.Len() != 0 {
		t.Fatal("expected both buses empty after Reset")
	}
}
