package latency

import (
	"testing"

	"hftbacktest-go/domain"
)

func TestConstantLatency(t *testing.T) {
	c := Constant{EntryLatency: 10, ResponseLatency: 20}
	o := &domain.Order{}
	if got := c.Entry(0, o); got != 10 {
		t.Fatalf("expected entry 10, got %d", got)
	}
	if got := c.Response(0, o); got != 20 {
		t.Fatalf("expected response 20, got %d", got)
	}
}

func TestFeedDerivedSymmetricAverages(t *testing.T) {
	f := &FeedDerived{Direction: DirectionSymmetric, EntryMul: 1, RespMul: 1}
	f.Advance(FeedSample{LocalTS: 110, ExchTS: 100}, FeedSample{LocalTS: 130, ExchTS: 100}, true, true)
	// prev lag = 10, next lag = 30, symmetric average = 20.
	o := &domain.Order{}
	if got := f.Entry(0, o); got != 20 {
		t.Fatalf("expected symmetric entry latency 20, got %d", got)
	}
}

func TestFeedDerivedForwardUsesOnlyNextSample(t *testing.T) {
	f := &FeedDerived{Direction: DirectionForward, EntryMul: 1}
	f.Advance(FeedSample{LocalTS: 110, ExchTS: 100}, FeedSample{LocalTS: 130, ExchTS: 100}, true, true)
	o := &domain.Order{}
	if got := f.Entry(0, o); got != 30 {
		t.Fatalf("expected forward entry latency 30, got %d", got)
	}
}

func TestFeedDerivedBackwardUsesOnlyPrevSample(t *testing.T) {
	f := &FeedDerived{Direction: DirectionBackward, EntryMul: 1}
	f.Advance(FeedSample{LocalTS: 110, ExchTS: 100}, FeedSample{LocalTS: 130, ExchTS: 100}, true, true)
	o := &domain.Order{}
	if got := f.Entry(0, o); got != 10 {
		t.Fatalf("expected backward entry latency 10, got %d", got)
	}
}

func TestFeedDerivedResetClearsSamples(t *testing.T) {
	f := &FeedDerived{Direction: DirectionSymmetric}
	f.Advance(FeedSample{LocalTS: 110, ExchTS: 100}, FeedSample{}, true, false)
	f.Reset()
	o := &domain.Order{}
	if got := f.Entry(0, o); got != 0 {
		t.Fatalf("expected 0 latency after reset with no samples, got %d", got)
	}
}

func TestIntpOrderLatencyClampsOutsideRange(t *testing.T) {
	il := NewIntpOrderLatency([]OrderLatencyRow{
		{ReqTS: 100, ExchTS: 110, RespTS: 125},
		{ReqTS: 200, ExchTS: 215, RespTS: 235},
	})
	o := &domain.Order{}
	if got := il.Entry(0, o); got != 10 {
		t.Fatalf("expected clamp to first row latency 10, got %d", got)
	}
	if got := il.Entry(1000, o); got != 15 {
		t.Fatalf("expected clamp to last row latency 15, got %d", got)
	}
}

func TestIntpOrderLatencyInterpolatesBetweenRows(t *testing.T) {
	il := NewIntpOrderLatency([]OrderLatencyRow{
		{ReqTS: 100, ExchTS: 110, RespTS: 120},
		{ReqTS: 200, ExchTS: 220, RespTS: 240},
	})
	o := &domain.Order{}
	// at ReqTS 150, latency should be halfway between 10 and 20 -> 15.
	if got := il.Entry(150, o); got != 15 {
		t.Fatalf("expected interpolated entry latency 15, got %d", got)
	}
}

func TestIntpOrderLatencyResponseInterpolation(t *testing.T) {
	il := NewIntpOrderLatency([]OrderLatencyRow{
		{ReqTS: 100, ExchTS: 110, RespTS: 120},
		{ReqTS: 200, ExchTS: 210, RespTS: 240},
	})
	o := &domain.Order{}
	// at ExchTS 160, response latency should be halfway between (120-110=10)
	// and (240-210=30) -> 20.
	if got := il.Response(160, o); got != 20 {
		t.Fatalf("expected interpolated response latency 20, got %d", got)
	}
}

func TestIntpOrderLatencyEmptyTable(t *testing.T) {
	il := NewIntpOrderLatency(nil)
	o := &domain.Order{}
	if got := il.Entry(0, o); got != 0 {
		t.Fatalf("expected 0 for an empty table, got %d", got)
	}
}

func TestIntpOrderLatencyResetRewindsCursor(t *testing.T) {
	il := NewIntpOrderLatency([]OrderLatencyRow{
		{ReqTS: 100, ExchTS: 110, RespTS: 120},
		{ReqTS: 200, ExchTS: 220, RespTS: 240},
		{ReqTS: 300, ExchTS: 330, RespTS: 360},
	})
	o := &domain.Order{}
	il.Entry(250, o) // advances entryRow cursor forward
	il.Reset()
	if il.entryRow != 0 || il.respRow != 0 {
		t.Fatal("expected Reset to rewind both cursors to 0")
	}
	if got := il.Entry(150, o); got != 15 {
		t.Fatalf("expected correct interpolation after reset, got %d", got)
	}
}
