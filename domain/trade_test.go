package domain

import "testing"

func TestNewFillStampsFromOrder(t *testing.T) {
	o := &Order{ID: 7, Side: SideSell, ExecPriceTick: 1000, ExecQty: 1.5, Maker: true}
	f := NewFill(o, 12345)

	if f.ID == "" {
		t.Fatal("expected a non-empty fill ID")
	}
	if f.OrderID != 7 || f.Side != SideSell || f.PriceTick != 1000 || f.Qty != 1.5 || !f.Maker || f.Timestamp != 12345 {
		t.Fatalf("unexpected fill: %+v", f)
	}
}

func TestNewFillIDsAreUnique(t *testing.T) {
	o := &Order{ID: 1}
	a := NewFill(o, 0)
	b := NewFill(o, 0)
	if a.ID == b.ID {
		t.Fatal("expected distinct fill IDs across calls")
	}
}
