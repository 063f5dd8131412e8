// Package queue implements the queue-position models that decide when a
// resting maker order is filled (spec §4.6), ported from
// hftbacktest/models/queue.py's RiskAverseQueueModel and ProbQueueModel
// family.
package queue

import (
	"math"

	"hftbacktest-go/domain"
)

// DepthView is the minimal slice of exchange-side state a queue model
// needs: same-side resting quantity at a tick, and the lot size used to
// round q[0] when deciding IsFilled. Passing this narrow view instead of
// the whole exchange processor breaks the depth-callback -> processor ->
// queue-model -> processor cycle noted in spec §9: the model never holds
// a pointer back to its caller.
type DepthView interface {
	BidQty(tick int64) float64
	AskQty(tick int64) float64
	LotSize() float64
}

// Model is implemented by each queue-position strategy. It is a narrow
// trait object held by the Exchange Processor, which calls every method
// through this interface.
type Model interface {
	New(o *domain.Order, d DepthView)
	Trade(o *domain.Order, qty float64, d DepthView)
	Depth(o *domain.Order, prevQty, newQty float64, d DepthView)
	IsFilled(o *domain.Order, d DepthView) bool
	Reset()
}

func sameSideQty(o *domain.Order, d DepthView) float64 {
	if o.Side == domain.SideBuy {
		return d.BidQty(o.PriceTick)
	}
	return d.AskQty(o.PriceTick)
}

// RiskAverse advances an order's queue position only on same-tick trades;
// a book-quantity decrease caps (but never un-caps) the front estimate.
// Conservative: it never over-estimates how far forward the order has
// moved.
type RiskAverse struct{}

func (RiskAverse) New(o *domain.Order, d DepthView) {
	o.Q0 = sameSideQty(o, d)
}

func (RiskAverse) Trade(o *domain.Order, qty float64, d DepthView) {
	o.Q0 -= qty
}

func (RiskAverse) Depth(o *domain.Order, prevQty, newQty float64, d DepthView) {
	o.Q0 = math.Min(o.Q0, newQty)
}

func (RiskAverse) IsFilled(o *domain.Order, d DepthView) bool {
	return domain.QtyToLots(o.Q0, d.LotSize()) < 0
}

func (RiskAverse) Reset() {}

// ProfileFunc is one of the f(x) shaping functions used to turn a
// relative queue position into a probability of having been skipped by a
// partial book decrease.
type ProfileFunc func(x float64) float64

// Profile functions from hftbacktest/models/queue.py.
var (
	LogProfile ProfileFunc = func(x float64) float64 { return math.Log(1 + x) }
	IdentityProfile ProfileFunc = func(x float64) float64 { return x }
	SquareProfile ProfileFunc = func(x float64) float64 { return x * x }
)

// PowerProfile returns an f(x) = x^n profile for the given exponent.
func PowerProfile(n float64) ProfileFunc {
	return func(x float64) float64 { return math.Pow(x, n) }
}

// ProbVariant selects which probability formula a Prob model uses,
// mirroring ProbQueueModel / ProbQueueModel2 / ProbQueueModel3 in the
// source.
type ProbVariant int

const (
	// ProbVariant1 computes f(back) / (f(front) + f(back)).
	ProbVariant1 ProbVariant = iota
	// ProbVariant2 computes f(back) / f(front+back).
	ProbVariant2
	// ProbVariant3 computes 1 - f(front / (front+back)).
	ProbVariant3
)

// Prob is the probability-based queue model: book-quantity decreases
// advance the order's estimated front position proportionally to how
// deep in the level it sits, instead of assuming worst case (RiskAverse)
// or best case.
type Prob struct {
	F       ProfileFunc
	Variant ProbVariant
}

func NewProb(f ProfileFunc, variant ProbVariant) *Prob {
	return &Prob{F: f, Variant: variant}
}

func (p *Prob) New(o *domain.Order, d DepthView) {
	o.Q0 = sameSideQty(o, d)
}

func (p *Prob) Trade(o *domain.Order, qty float64, d DepthView) {
	o.Q0 -= qty
	o.Q1 += qty
}

func (p *Prob) Depth(o *domain.Order, prevQty, newQty float64, d DepthView) {
	chg := prevQty - newQty - o.Q1
	o.Q1 = 0

	if chg < 0 {
		// The book grew: the front of the queue is unaffected, only
		// capped by the (larger) new level size.
		o.Q0 = math.Min(o.Q0, newQty)
		return
	}

	front := o.Q0
	back := prevQty - front

	prob := p.prob(front, back)
	if math.IsInf(prob, 0) || math.IsNaN(prob) {
		prob = 1
	}

	estFront := front - (1-prob)*chg + math.Min(back-prob*chg, 0)
	o.Q0 = math.Min(estFront, newQty)
}

func (p *Prob) prob(front, back float64) float64 {
	switch p.Variant {
	case ProbVariant2:
		return p.F(back) / p.F(back+front)
	case ProbVariant3:
		return 1 - p.F(front/(front+back))
	default:
		return p.F(back) / (p.F(front) + p.F(back))
	}
}

func (p *Prob) IsFilled(o *domain.Order, d DepthView) bool {
	return domain.QtyToLots(o.Q0, d.LotSize()) < 0
}

func (p *Prob) Reset() {}
