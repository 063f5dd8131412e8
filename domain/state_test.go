package domain

import "testing"

func TestStateApplyLinearBuyFill(t *testing.T) {
	s := NewState(0, 0, 0, 0.0002, 0.0007, Linear{}, 10, false)

	o := &Order{
		Side:          SideBuy,
		ExecPriceTick: 1000, // 100.0 at tick 0.1
		ExecQty:       2.0,
		Maker:         false,
	}
	s.Apply(o, 0.1)

	if s.Position != 2.0 {
		t.Fatalf("expected position 2.0, got %v", s.Position)
	}
	wantBalance := -200.0
	if s.Balance != wantBalance {
		t.Fatalf("expected balance %v, got %v", wantBalance, s.Balance)
	}
	takerFee := 0.0007
	wantFee := 200.0 * takerFee
	if s.Fee != wantFee {
		t.Fatalf("expected fee %v, got %v", wantFee, s.Fee)
	}
	if s.NumTrades != 1 {
		t.Fatalf("expected 1 trade, got %d", s.NumTrades)
	}
}

func TestStateApplyMakerUsesMakerFee(t *testing.T) {
	s := NewState(0, 0, 0, 0.0002, 0.0007, Linear{}, 10, false)
	o := &Order{Side: SideSell, ExecPriceTick: 1000, ExecQty: 1.0, Maker: true}
	s.Apply(o, 0.1)

	wantFee := 100.0 * 0.0002
	if s.Fee != wantFee {
		t.Fatalf("expected maker fee %v, got %v", wantFee, s.Fee)
	}
}

func TestRecordTradeDropsOldestWhenNotStrict(t *testing.T) {
	s := NewState(0, 0, 0, 0, 0, Linear{}, 2, false)
	for i := 0; i < 3; i++ {
		if err := s.RecordTrade(Event{Kind: EventTrade, ExchTS: int64(i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	trades := s.LastTrades()
	if len(trades) != 2 {
		t.Fatalf("expected buffer capped at 2, got %d", len(trades))
	}
	if trades[0].ExchTS != 1 || trades[1].ExchTS != 2 {
		t.Fatalf("expected the oldest entry dropped, got %+v", trades)
	}
}

func TestRecordTradeStrictOverflow(t *testing.T) {
	s := NewState(0, 0, 0, 0, 0, Linear{}, 1, true)
	if err := s.RecordTrade(Event{Kind: EventTrade}); err != nil {
		t.Fatalf("unexpected error on first insert: %v", err)
	}
	if err := s.RecordTrade(Event{Kind: EventTrade}); err != ErrLastTradesOverflow {
		t.Fatalf("expected ErrLastTradesOverflow, got %v", err)
	}
}

func TestClearLastTradesIdempotent(t *testing.T) {
	s := NewState(0, 0, 0, 0, 0, Linear{}, 10, false)
	s.RecordTrade(Event{Kind: EventTrade})
	s.ClearLastTrades()
	if len(s.LastTrades()) != 0 {
		t.Fatal("expected empty after first clear")
	}
	s.ClearLastTrades()
	if len(s.LastTrades()) != 0 {
		t.Fatal("expected idempotent: still empty after second clear")
	}
}

func TestEquityLinearAndInverse(t *testing.T) {
	linear := NewState(1, 100, 5, 0, 0, Linear{}, 10, false)
	if got := linear.Equity(50); got != 100+1*50-5 {
		t.Fatalf("unexpected linear equity: %v", got)
	}

	inverse := NewState(1, 100, 5, 0, 0, Inverse{}, 10, false)
	if got := inverse.Equity(50); got != -100-1.0/50-5 {
		t.Fatalf("unexpected inverse equity: %v", got)
	}
}
