package flowbus

import "testing"

func TestSelectorSelectKnownOption(t *testing.T) {
	useFastRecorderOptions(t)
	sel, err := NewSelector(testPath(t), "mode", []string{"easy", "hard"}, nil)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	defer sel.Close()

	sub := subscribeTracer(t, sel.Tracer)
	defer sub.Close()

	hard := "hard"
	sel.Select(&hard)
	batch := waitBatch(t, sub)

	applied := selectorKind{}.Apply(SelectorState{Options: []string{"easy", "hard"}}, batch.Events[0]).(SelectorState)
	if applied.Selected == nil || *applied.Selected != "hard" {
		t.Fatalf("expected Selected = hard, got %v", applied.Selected)
	}
}

func TestSelectorApplyIgnoresUndeclaredOption(t *testing.T) {
	k := selectorKind{}
	initial := SelectorState{Options: []string{"easy", "hard"}}
	bogus := "impossible"
	next := k.Apply(initial, TimedEvent{Event: SelectorSelect{Option: &bogus}}).(SelectorState)
	if next.Selected != nil {
		t.Fatalf("expected undeclared option to be ignored, got Selected = %v", *next.Selected)
	}
}

func TestSelectorApplyClearsSelection(t *testing.T) {
	k := selectorKind{}
	chosen := "easy"
	initial := SelectorState{Options: []string{"easy", "hard"}, Selected: &chosen}
	next := k.Apply(initial, TimedEvent{Event: SelectorSelect{Option: nil}}).(SelectorState)
	if next.Selected != nil {
		t.Fatalf("expected Selected cleared, got %v", *next.Selected)
	}
}

func TestSelectorDecodeActionFromWireMap(t *testing.T) {
	k := selectorKind{}
	decoded, err := k.DecodeAction(map[string]any{"option": "hard"})
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}
	if *decoded.(SelectorSelect).Option != "hard" {
		t.Fatalf("expected Option = hard, got %v", decoded)
	}

	cleared, err := k.DecodeAction(map[string]any{})
	if err != nil {
		t.Fatalf("DecodeAction (clear): %v", err)
	}
	if cleared.(SelectorSelect).Option != nil {
		t.Fatalf("expected nil Option for missing key")
	}

	if _, err := k.DecodeAction(map[string]any{"option": 5}); err == nil {
		t.Fatalf("expected non-string option to be rejected")
	}
}
