package marketdepth

import (
	"testing"

	"hftbacktest-go/domain"
)

// recorder captures callback invocations for assertions.
type recorder struct {
	bidChg  []float64
	askChg  []float64
	bidBest []int64
	askBest []int64
}

func (r *recorder) OnBidQtyChg(tick int64, prev, new float64, ts int64) { r.bidChg = append(r.bidChg, new) }
func (r *recorder) OnAskQtyChg(tick int64, prev, new float64, ts int64) { r.askChg = append(r.askChg, new) }
func (r *recorder) OnBestBidUpdate(prev, new int64, ts int64)           { r.bidBest = append(r.bidBest, new) }
func (r *recorder) OnBestAskUpdate(prev, new int64, ts int64)          { r.askBest = append(r.askBest, new) }

// S1 from the property set: a trivial snapshot, best levels and mid
// derived correctly.
func TestApplySnapshotS1(t *testing.T) {
	d := New(0.1, 0.1)
	d.ApplySnapshot([]domain.Event{
		{Side: domain.SideBuy, Price: 9.9, Qty: 1.0},
		{Side: domain.SideBuy, Price: 9.8, Qty: 2.0},
		{Side: domain.SideSell, Price: 10.0, Qty: 1.5},
		{Side: domain.SideSell, Price: 10.1, Qty: 2.5},
	})

	if got := d.BestBid(); got != 9.9 {
		t.Fatalf("expected best bid 9.9, got %v", got)
	}
	if got := d.BestAsk(); got != 10.0 {
		t.Fatalf("expected best ask 10.0, got %v", got)
	}
	if got := d.Mid(); got != 9.95 {
		t.Fatalf("expected mid 9.95, got %v", got)
	}
}

func TestUpdateBidDepthAdvancesBest(t *testing.T) {
	d := New(0.1, 0.1)
	rec := &recorder{}
	d.UpdateBidDepth(9.9, 1.0, 100, rec)
	d.UpdateBidDepth(10.0, 1.0, 101, rec)

	if d.BestBid() != 10.0 {
		t.Fatalf("expected best bid to advance to 10.0, got %v", d.BestBid())
	}
	if len(rec.bidBest) != 2 {
		t.Fatalf("expected two best-bid callbacks, got %d", len(rec.bidBest))
	}
}

func TestUpdateBidDepthZeroQtyDeletesAndRescans(t *testing.T) {
	d := New(0.1, 0.1)
	d.UpdateBidDepth(9.9, 1.0, 100, nil)
	d.UpdateBidDepth(9.8, 2.0, 100, nil)
	d.UpdateBidDepth(9.9, 0, 101, nil)

	if d.BestBid() != 9.8 {
		t.Fatalf("expected best bid to fall back to 9.8, got %v", d.BestBid())
	}
	if d.BidQty(domain.PriceToTick(9.9, 0.1)) != 0 {
		t.Fatal("expected the zeroed level to be gone")
	}
}

// Testable property 1: best_bid_tick < best_ask_tick whenever both are
// non-sentinel — a bid that crosses the ask must clear the crossed ask
// levels.
func TestCrossingBidClearsAsks(t *testing.T) {
	d := New(0.1, 0.1)
	d.UpdateAskDepth(10.0, 1.0, 100, nil)
	d.UpdateAskDepth(10.1, 1.0, 100, nil)
	d.UpdateBidDepth(10.1, 1.0, 101, nil)

	if d.BestBidTick() >= d.BestAskTick() {
		t.Fatalf("best_bid_tick (%d) should be < best_ask_tick (%d)", d.BestBidTick(), d.BestAskTick())
	}
	if d.AskQty(domain.PriceToTick(10.0, 0.1)) != 0 || d.AskQty(domain.PriceToTick(10.1, 0.1)) != 0 {
		t.Fatal("expected crossed ask levels to be cleared")
	}
}

func TestClearDepthBothSides(t *testing.T) {
	d := New(0.1, 0.1)
	d.UpdateBidDepth(9.9, 1.0, 100, nil)
	d.UpdateAskDepth(10.0, 1.0, 100, nil)
	d.ClearDepth(domain.SideNone, 0)

	if d.BestBidTick() != domain.InvalidMinTick || d.BestAskTick() != domain.InvalidMaxTick {
		t.Fatal("expected both sides cleared")
	}
}
