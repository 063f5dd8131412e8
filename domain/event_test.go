package domain

import "testing"

func TestKindStripsV2Flags(t *testing.T) {
	k := EventTrade | FlagExchEvent | FlagBuyEvent
	if k.Kind() != EventTrade {
		t.Fatalf("expected Kind() to strip flag bits, got %v", k.Kind())
	}
}

func TestIsUserDefined(t *testing.T) {
	k := eventUserDefinedBase + 3
	idx, ok := k.IsUserDefined()
	if !ok || idx != 3 {
		t.Fatalf("expected user-defined index 3, got idx=%d ok=%v", idx, ok)
	}
	if _, ok := EventTrade.IsUserDefined(); ok {
		t.Fatal("expected a standard event kind to not be user-defined")
	}
}

func TestHasExchAndHasLocal(t *testing.T) {
	k := EventDepthUpdate | FlagExchEvent
	if !k.HasExch() {
		t.Fatal("expected HasExch true")
	}
	if k.HasLocal() {
		t.Fatal("expected HasLocal false")
	}
}

func TestExchValidV1RowHonorsSentinel(t *testing.T) {
	ev := Event{Kind: EventDepthUpdate, ExchTS: NoTimestamp, LocalTS: 100}
	if ev.ExchValid() {
		t.Fatal("expected a -1 ExchTS to be invalid regardless of flags")
	}
	ev2 := Event{Kind: EventDepthUpdate, ExchTS: 100, LocalTS: 100}
	if !ev2.ExchValid() {
		t.Fatal("expected a v1 row with no flags and a real ExchTS to be exchange-valid")
	}
}

func TestLocalValidV2RowHonorsFlag(t *testing.T) {
	ev := Event{Kind: EventDepthUpdate | FlagExchEvent, ExchTS: 100, LocalTS: 100}
	if ev.LocalValid() {
		t.Fatal("expected a v2 row lacking FlagLocalEvent to be local-invalid")
	}
	ev2 := Event{Kind: EventDepthUpdate | FlagExchEvent | FlagLocalEvent, ExchTS: 100, LocalTS: 100}
	if !ev2.LocalValid() {
		t.Fatal("expected a v2 row carrying FlagLocalEvent to be local-valid")
	}
}
