package domain

import "testing"

func TestNewOrderStartsAsPendingNew(t *testing.T) {
	o := NewOrder(1, SideBuy, 100, 2.0, TIFGTC, OrderTypeLimit)
	if o.Status != StatusNone || o.Req != ReqNew {
		t.Fatalf("expected a fresh order in StatusNone/ReqNew, got status=%v req=%v", o.Status, o.Req)
	}
	if o.LeavesQty != 2.0 {
		t.Fatalf("expected LeavesQty seeded to Qty, got %v", o.LeavesQty)
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []OrderStatus{StatusFilled, StatusCanceled, StatusExpired, StatusRejected}
	for _, s := range terminal {
		o := Order{Status: s}
		if !o.IsTerminal() {
			t.Fatalf("expected status %v to be terminal", s)
		}
	}
	nonTerminal := []OrderStatus{StatusNone, StatusNew, StatusPartiallyFilled}
	for _, s := range nonTerminal {
		o := Order{Status: s}
		if o.IsTerminal() {
			t.Fatalf("expected status %v to not be terminal", s)
		}
	}
}

func TestCancellable(t *testing.T) {
	o := Order{Status: StatusNew, Req: ReqNone}
	if !o.Cancellable() {
		t.Fatal("expected a resting order with no in-flight request to be cancellable")
	}
	o.Req = ReqCanceled
	if o.Cancellable() {
		t.Fatal("expected an order with an ongoing request to not be cancellable")
	}
	o2 := Order{Status: StatusFilled, Req: ReqNone}
	if o2.Cancellable() {
		t.Fatal("expected a filled order to not be cancellable")
	}
}

func TestPriceAndExecPrice(t *testing.T) {
	o := Order{PriceTick: 101, ExecPriceTick: 99}
	if got := o.Price(0.1); got != 10.1 {
		t.Fatalf("expected price 10.1, got %v", got)
	}
	if got := o.ExecPrice(0.1); got < 9.8999 || got > 9.9001 {
		t.Fatalf("expected exec price ~9.9, got %v", got)
	}
}
