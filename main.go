package main

import (
	"fmt"

	"hftbacktest-go/bus"
	"hftbacktest-go/domain"
	"hftbacktest-go/driver"
	"hftbacktest-go/exchange"
	"hftbacktest-go/latency"
	"hftbacktest-go/local"
	"hftbacktest-go/marketdepth"
	"hftbacktest-go/queue"
	"hftbacktest-go/reader"
)

// main demonstrates the minimal wiring for one asset, end to end: a
// snapshot, a resting sell order that a later trade print fills, and a
// printed summary of the resulting ledger. cmd/backtest is the real CLI;
// this is the same kind of walkthrough the teacher's own main.go gave for
// its matching engine, adapted to this engine's asset/driver shape.
func main() {
	const tickSize, lotSize = 0.1, 0.1

	exchReader := reader.New(reader.NewSharedCache())
	localReader := reader.New(reader.NewSharedCache())

	rows := []domain.Event{
		{Kind: domain.EventDepthSnapshot, ExchTS: 100, LocalTS: 110, Side: domain.SideBuy, Price: 9.9, Qty: 1.0},
		{Kind: domain.EventDepthSnapshot, ExchTS: 100, LocalTS: 110, Side: domain.SideSell, Price: 10.0, Qty: 1.5},
		{Kind: domain.EventTrade, ExchTS: 500, LocalTS: 510, Side: domain.SideBuy, Price: 10.0, Qty: 2.0},
	}
	exchReader.AddData(rows)
	localReader.AddData(rows)

	exchDepth := marketdepth.New(tickSize, lotSize)
	localDepth := marketdepth.New(tickSize, lotSize)
	state := domain.NewState(0, 0, 0, 0.0002, 0.0007, domain.Linear{}, 1000, false)

	toLocal, toExch := bus.New(), bus.New()
	exchProc := exchange.New(exchReader, toLocal, toExch, exchDepth, state, latency.Constant{}, &queue.RiskAverse{})
	localProc := local.New(localReader, toExch, toLocal, localDepth, state, latency.Constant{})

	d := driver.New([]*driver.Asset{{Name: "BTCUSDT", Local: localProc, Exchange: exchProc}})

	fmt.Println("Exchange engine started")

	d.Elapse(100)
	fmt.Printf("best_bid=%.2f best_ask=%.2f mid=%.3f\n", localDepth.BestBid(), localDepth.BestAsk(), localDepth.Mid())

	if err := d.SubmitSellOrder(0, domain.OrderID(1), domain.PriceToTick(10.0, tickSize), 1.0, domain.TIFGTC, false); err != nil {
		fmt.Println("submit failed:", err)
	}
	fmt.Println("Submitted sell order: 1.0 @ 10.0")

	for d.Elapse(1000) {
	}

	for id, o := range d.Orders(0) {
		fmt.Printf("order %d: status=%v exec_qty=%.2f\n", id, o.Status, o.ExecQty)
	}
	st := d.StateValues(0)
	fmt.Printf("position=%.2f balance=%.4f fee=%.6f num_trades=%d\n", st.Position, st.Balance, st.Fee, st.NumTrades)
}
