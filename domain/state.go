package domain

// State is the per-asset portfolio ledger: position, balance, accumulated
// fees, and trade counters. Fills are applied exactly once, on the
// exchange side (SPEC_FULL §12 — Local stays read-only on State), via
// Apply.
type State struct {
	Position float64
	Balance  float64
	Fee      float64

	NumTrades      int64
	TradingVolume  float64 // cumulative executed qty
	TradingValue   float64 // cumulative executed contract value

	MakerFee float64
	TakerFee float64
	Asset    AssetType

	lastTrades    []Event
	lastTradesCap int
	lastTradesLen int
	strict        bool
}

// NewState constructs a State with the given starting ledger and a bounded
// last-trades ring buffer (SPEC_FULL §11).
func NewState(startPosition, startBalance, startFee, makerFee, takerFee float64, asset AssetType, lastTradesCap int, strict bool) *State {
	if lastTradesCap <= 0 {
		lastTradesCap = 1000
	}
	return &State{
		Position:      startPosition,
		Balance:       startBalance,
		Fee:           startFee,
		MakerFee:      makerFee,
		TakerFee:      takerFee,
		Asset:         asset,
		lastTrades:    make([]Event, lastTradesCap),
		lastTradesCap: lastTradesCap,
		strict:        strict,
	}
}

// Apply folds one order fill into the ledger. tickSize converts the
// order's integer exec price back to a float for the AssetType formula.
func (s *State) Apply(o *Order, tickSize float64) {
	fee := s.TakerFee
	if o.Maker {
		fee = s.MakerFee
	}
	execPrice := o.ExecPrice(tickSize)
	amount := s.Asset.Amount(execPrice, o.ExecQty)

	s.Position += o.ExecQty * float64(o.Side)
	s.Balance -= amount * float64(o.Side)
	s.Fee += amount * fee

	s.NumTrades++
	s.TradingVolume += o.ExecQty
	s.TradingValue += amount
}

// Equity computes unrealized account equity against a mark price.
func (s *State) Equity(mid float64) float64 {
	return s.Asset.Equity(mid, s.Balance, s.Position, s.Fee)
}

// Reset restores the ledger to fresh starting values, optionally
// overriding the fee schedule: a nil makerFee or takerFee keeps the
// current fee.
func (s *State) Reset(startPosition, startBalance, startFee float64, makerFee, takerFee *float64) {
	s.Position = startPosition
	s.Balance = startBalance
	s.Fee = startFee
	s.NumTrades = 0
	s.TradingVolume = 0
	s.TradingValue = 0
	if makerFee != nil {
		s.MakerFee = *makerFee
	}
	if takerFee != nil {
		s.TakerFee = *takerFee
	}
	s.lastTradesLen = 0
}

// RecordTrade appends a TRADE event to the bounded last-trades buffer.
// On overflow the oldest entry is dropped unless Strict is set, in which
// case the caller should treat it as the IndexOutOfBounds failure kind.
func (s *State) RecordTrade(ev Event) error {
	if s.lastTradesLen >= s.lastTradesCap {
		if s.strict {
			return ErrLastTradesOverflow
		}
		copy(s.lastTrades, s.lastTrades[1:])
		s.lastTradesLen--
	}
	s.lastTrades[s.lastTradesLen] = ev
	s.lastTradesLen++
	return nil
}

// LastTrades returns the trades recorded since construction or the last
// ClearLastTrades call.
func (s *State) LastTrades() []Event {
	return s.lastTrades[:s.lastTradesLen]
}

// ClearLastTrades empties the last-trades buffer. Idempotent: calling it
// twice in a row is a no-op the second time.
func (s *State) ClearLastTrades() {
	s.lastTradesLen = 0
}
