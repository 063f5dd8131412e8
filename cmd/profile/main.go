package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

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

const (
	tickSize = 0.1
	lotSize  = 0.1
	numRows  = 2_000_000
)

// genRows synthesizes a single-asset replay stream: an opening snapshot
// followed by a random walk of depth updates and occasional trade
// prints, exch_ts and local_ts offset by a fixed feed latency.
func genRows() []domain.Event {
	rng := rand.New(rand.NewSource(1))
	rows := make([]domain.Event, 0, numRows+2)
	rows = append(rows,
		domain.Event{Kind: domain.EventDepthSnapshot, ExchTS: 0, LocalTS: 50, Side: domain.SideBuy, Price: 99.9, Qty: 10},
		domain.Event{Kind: domain.EventDepthSnapshot, ExchTS: 0, LocalTS: 50, Side: domain.SideSell, Price: 100.0, Qty: 10},
	)

	ts := int64(100)
	mid := 100.0
	for i := 0; i < numRows; i++ {
		ts += int64(rng.Intn(50) + 1)
		side := domain.SideBuy
		if rng.Intn(2) == 0 {
			side = domain.SideSell
		}
		price := mid + float64(rng.Intn(20)-10)*tickSize
		qty := float64(rng.Intn(10)+1) * lotSize

		kind := domain.EventDepthUpdate
		if rng.Intn(20) == 0 {
			kind = domain.EventTrade
		}
		rows = append(rows, domain.Event{Kind: kind, ExchTS: ts, LocalTS: ts + 50, Side: side, Price: price, Qty: qty})
	}
	return rows
}

// main profiles one full replay of a large in-memory synthetic stream.
// The engine is single-threaded and cooperative (no worker pool to
// profile, unlike the teacher's concurrent matching engine): the hot
// path worth profiling here is Driver.Elapse's step loop, Depth's
// level-update bookkeeping, and the queue model's per-trade math.
func main() {
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	pprof.StartCPUProfile(cpuFile)
	defer pprof.StopCPUProfile()

	fmt.Println("=== profiling a synthetic single-asset replay ===")
	fmt.Printf("rows: %d\n", numRows)

	rows := genRows()

	exchReader := reader.New(reader.NewSharedCache())
	localReader := reader.New(reader.NewSharedCache())
	exchReader.AddData(rows)
	localReader.AddData(rows)

	exchDepth := marketdepth.New(tickSize, lotSize)
	localDepth := marketdepth.New(tickSize, lotSize)
	state := domain.NewState(0, 0, 0, 0.0002, 0.0007, domain.Linear{}, 1000, false)

	toLocal, toExch := bus.New(), bus.New()
	exchProc := exchange.New(exchReader, toLocal, toExch, exchDepth, state, latency.Constant{ResponseLatency: 10}, &queue.RiskAverse{})
	localProc := local.New(localReader, toExch, toLocal, localDepth, state, latency.Constant{EntryLatency: 10})

	d := driver.New([]*driver.Asset{{Name: "SYN", Local: localProc, Exchange: exchProc}})

	var orderID domain.OrderID
	start := time.Now()
	for i := 0; d.Elapse(1_000_000); i++ {
		if i%500 == 0 {
			orderID++
			side := domain.SideBuy
			if i%1000 == 0 {
				side = domain.SideSell
			}
			tick := domain.PriceToTick(localDepth.Mid(), tickSize)
			if side == domain.SideBuy {
				d.SubmitBuyOrder(0, orderID, tick-5, 1.0, domain.TIFGTC, false)
			} else {
				d.SubmitSellOrder(0, orderID, tick+5, 1.0, domain.TIFGTC, false)
			}
		}
	}
	elapsed := time.Since(start)

	st := d.StateValues(0)
	fmt.Println("\n=== results ===")
	fmt.Printf("wall time: %v\n", elapsed)
	fmt.Printf("rows/sec: %.0f\n", float64(numRows)/elapsed.Seconds())
	fmt.Printf("fills: %d position=%.2f\n", st.NumTrades, st.Position)
	fmt.Println("\ninspect with: go tool pprof -http=:8080 cpu.prof")
}
