package domain

// EventKind tags the shape of a canonical event row. Values 100+ are
// reserved for USER_DEFINED rows, whose payload index is (code - 100).
type EventKind int64

const (
	EventDepthUpdate  EventKind = 1
	EventTrade        EventKind = 2
	EventDepthClear   EventKind = 3
	EventDepthSnapshot EventKind = 4
	eventUserDefinedBase EventKind = 100
)

// Validity flags packed into the v2 structured layout's high bits, per
// SPEC_FULL §6. A row lacking EXCH_EVENT carries no exchange-side
// validity regardless of what ExchTS holds; same for LOCAL_EVENT.
const (
	FlagExchEvent EventKind = 1 << 31
	FlagLocalEvent EventKind = 1 << 30
	FlagBuyEvent  EventKind = 1 << 29
	FlagSellEvent EventKind = 1 << 28

	eventKindMask EventKind = 0xFF
)

// NoTimestamp is the sentinel meaning "this side does not observe this
// row" for both the v1 (-1 literal) and v2 (absent validity flag) wire
// layouts.
const NoTimestamp int64 = -1

// Kind extracts the bare event kind, stripping the v2 validity/side flags.
func (e EventKind) Kind() EventKind {
	return e & eventKindMask
}

// IsUserDefined reports whether the event kind is a USER_DEFINED row, and
// if so returns its payload index.
func (e EventKind) IsUserDefined() (int, bool) {
	k := e.Kind()
	if k >= eventUserDefinedBase {
		return int(k - eventUserDefinedBase), true
	}
	return 0, false
}

// HasExch reports whether a v2 row carries exchange-side validity. It
// looks at the flag bit only; ExchValid combines it with the -1 sentinel
// that v1 rows, which carry no flag bits at all, rely on.
func (e EventKind) HasExch() bool {
	return e&FlagExchEvent != 0
}

// HasLocal reports whether a v2 row carries local-side validity.
func (e EventKind) HasLocal() bool {
	return e&FlagLocalEvent != 0
}

// Event is the fixed-shape canonical record produced by the data
// correction pipeline and consumed by both processors. A single struct
// represents both the v1 dense and v2 structured wire layouts once
// decoded. Reader decodes v1 rows as they are, without adding validity
// flags; ExchValid and LocalValid treat a row with no flags as observed
// by a side unless that side's timestamp is the -1 sentinel.
type Event struct {
	Kind    EventKind
	ExchTS  int64
	LocalTS int64
	Side    Side
	Price   float64
	Qty     float64
}

// ExchValid reports whether this side of the event is observable by the
// exchange processor, honoring both the v1 sentinel and the v2 flag.
func (e *Event) ExchValid() bool {
	if e.ExchTS == NoTimestamp {
		return false
	}
	if e.Kind&(FlagExchEvent|FlagLocalEvent) == 0 {
		// v1 row: no flags set at all means "both sides observe it",
		// gated purely by the -1 sentinel already checked above.
		return true
	}
	return e.Kind.HasExch()
}

// LocalValid is the Local-side analogue of ExchValid.
func (e *Event) LocalValid() bool {
	if e.LocalTS == NoTimestamp {
		return false
	}
	if e.Kind&(FlagExchEvent|FlagLocalEvent) == 0 {
		return true
	}
	return e.Kind.HasLocal()
}
