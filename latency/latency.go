// Package latency implements the order-latency models from spec §4.7,
// ported from hftbacktest/latencies.py. A latency model supplies Entry
// (local -> exchange travel time for a new/cancel/modify request) and
// Response (exchange -> local travel time for the reply). A negative
// Entry value means "rejected at origin"; its magnitude is the
// notification delay.
package latency

import "hftbacktest-go/domain"

// Model is implemented by each latency strategy. Like queue.Model, this
// is a narrow trait object at the processor boundary, not a call made
// from inside a tight per-row loop.
type Model interface {
	Entry(localTS int64, o *domain.Order) int64
	Response(exchTS int64, o *domain.Order) int64
	Reset()
}

// Constant is the simplest model: fixed entry/response latencies
// regardless of order or time.
type Constant struct {
	EntryLatency    int64
	ResponseLatency int64
}

func (c Constant) Entry(int64, *domain.Order) int64    { return c.EntryLatency }
func (c Constant) Response(int64, *domain.Order) int64 { return c.ResponseLatency }
func (c Constant) Reset()                              {}

// FeedSample is one row of a (local_ts, exch_ts) pair used to derive feed
// latency, i.e. the subset of the replayed stream where both timestamps
// are valid.
type FeedSample struct {
	LocalTS int64
	ExchTS  int64
}

// FeedDirection selects which neighboring valid feed sample(s) a
// FeedDerived model averages over.
type FeedDirection int

const (
	// DirectionSymmetric averages the sample behind and the sample ahead
	// of the current row (see Advance for which rows those are).
	DirectionSymmetric FeedDirection = iota
	// DirectionForward uses only the sample ahead.
	DirectionForward
	// DirectionBackward uses only the sample behind.
	DirectionBackward
)

// FeedDerived derives entry/response latency from the feed's own
// exch_ts/local_ts gap (local_ts - exch_ts) around the current replay
// position, scaled and offset by constants. Samples must be supplied in
// replay order via Advance as the engine steps through rows; FeedDerived
// keeps a small backward window and expects the caller to also know the
// next valid sample (the engine looks ahead one row via its reader's
// next-chunk peek).
type FeedDerived struct {
	Direction       FeedDirection
	EntryMul        float64
	RespMul         float64
	EntryLatency    int64
	ResponseLatency int64

	prevSample FeedSample
	prevValid  bool
	nextSample FeedSample
	nextValid  bool
}

// Advance records the feed samples around the current replay row: prev
// is the most recent row with both exch_ts and local_ts valid, next is
// only the row immediately after the current one, flagged invalid when
// either of its timestamps is -1 (rows further ahead are not searched).
// The processors call it after every data row they consume.
func (f *FeedDerived) Advance(prev, next FeedSample, prevValid, nextValid bool) {
	f.prevSample, f.prevValid = prev, prevValid
	f.nextSample, f.nextValid = next, nextValid
}

// Advancer is implemented by latency models that derive their estimate
// from the replay stream's own exch_ts/local_ts pairs (currently only
// FeedDerived). Processors type-assert their configured Model against
// this after every data row, since Advance isn't part of Model itself —
// Constant and IntpOrderLatency have no replay-position state to track.
type Advancer interface {
	Advance(prev, next FeedSample, prevValid, nextValid bool)
}

func (f *FeedDerived) latency() int64 {
	var lat1, lat2 int64
	var has1, has2 bool
	if f.prevValid {
		lat1 = f.prevSample.LocalTS - f.prevSample.ExchTS
		has1 = true
	}
	if f.nextValid {
		lat2 = f.nextSample.LocalTS - f.nextSample.ExchTS
		has2 = true
	}

	switch f.Direction {
	case DirectionForward:
		return lat2
	case DirectionBackward:
		return lat1
	default:
		switch {
		case has1 && has2:
			return (lat1 + lat2) / 2
		case has1:
			return lat1
		case has2:
			return lat2
		default:
			return 0
		}
	}
}

func (f *FeedDerived) Entry(int64, *domain.Order) int64 {
	return f.EntryLatency + int64(f.EntryMul*float64(f.latency()))
}

func (f *FeedDerived) Response(int64, *domain.Order) int64 {
	return f.ResponseLatency + int64(f.RespMul*float64(f.latency()))
}

func (f *FeedDerived) Reset() {
	f.prevValid, f.nextValid = false, false
}

// OrderLatencyRow is one (req_ts, exch_ts, resp_ts) triplet in an
// IntpOrderLatency table.
type OrderLatencyRow struct {
	ReqTS  int64
	ExchTS int64
	RespTS int64
}

// IntpOrderLatency interpolates entry/response latency from a preloaded
// table of observed round trips, clamping to the first/last row outside
// the table's range. The scan cursor is cached across calls (entryRow,
// respRow) for O(1) amortized advancement as local_ts/exch_ts increase
// monotonically through a run.
type IntpOrderLatency struct {
	Rows []OrderLatencyRow

	entryRow int
	respRow  int
}

func NewIntpOrderLatency(rows []OrderLatencyRow) *IntpOrderLatency {
	return &IntpOrderLatency{Rows: rows}
}

func lerp(x, x1, y1, x2, y2 float64) float64 {
	return (y2-y1)/(x2-x1)*(x-x1) + y1
}

func (il *IntpOrderLatency) Entry(localTS int64, o *domain.Order) int64 {
	rows := il.Rows
	if len(rows) == 0 {
		return 0
	}
	if localTS < rows[0].ReqTS {
		return rows[0].ExchTS - rows[0].ReqTS
	}
	last := rows[len(rows)-1]
	if localTS >= last.ReqTS {
		return last.ExchTS - last.ReqTS
	}
	for i := il.entryRow; i < len(rows)-1; i++ {
		req, next := rows[i].ReqTS, rows[i+1].ReqTS
		if req <= localTS && localTS < next {
			il.entryRow = i
			lat1 := float64(rows[i].ExchTS - req)
			lat2 := float64(rows[i+1].ExchTS - next)
			return int64(lerp(float64(localTS), float64(req), lat1, float64(next), lat2))
		}
	}
	return last.ExchTS - last.ReqTS
}

func (il *IntpOrderLatency) Response(exchTS int64, o *domain.Order) int64 {
	rows := il.Rows
	if len(rows) == 0 {
		return 0
	}
	if exchTS < rows[0].ExchTS {
		return rows[0].RespTS - rows[0].ExchTS
	}
	last := rows[len(rows)-1]
	if exchTS >= last.ExchTS {
		return last.RespTS - last.ExchTS
	}
	for i := il.respRow; i < len(rows)-1; i++ {
		exch, next := rows[i].ExchTS, rows[i+1].ExchTS
		if exch <= exchTS && exchTS < next {
			il.respRow = i
			lat1 := float64(rows[i].RespTS - exch)
			lat2 := float64(rows[i+1].RespTS - next)
			return int64(lerp(float64(exchTS), float64(exch), lat1, float64(next), lat2))
		}
	}
	return last.RespTS - last.ExchTS
}

func (il *IntpOrderLatency) Reset() {
	il.entryRow, il.respRow = 0, 0
}
