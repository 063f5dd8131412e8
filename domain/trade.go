package domain

import "github.com/google/uuid"

// Fill is a record of one execution of an order against the book, built
// by NewFill (the Exchange Processor's fill procedure does not create
// one), either as maker (resting order caught by the feed) or taker
// (aggressive order crossing on acceptance). It replaces the teacher's
// two-sided Trade record: in this engine there is exactly one local
// participant, so a fill has a single counterparty order, not a
// buy/sell pair.
type Fill struct {
	ID        string
	OrderID   OrderID
	Side      Side
	PriceTick int64
	Qty       float64
	Maker     bool
	Timestamp int64
}

// NewFill stamps a fill record from an order that has just been matched.
// The ID is a real UUID rather than the teacher's hand-rolled sequential
// generator, since a fill record crosses the Local/Exchange boundary and
// must stay unique across a whole multi-asset run, not just one process.
func NewFill(o *Order, ts int64) Fill {
	return Fill{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Side:      o.Side,
		PriceTick: o.ExecPriceTick,
		Qty:       o.ExecQty,
		Maker:     o.Maker,
		Timestamp: ts,
	}
}
