package flowbus

import "testing"

func TestBoardAssignAndRemove(t *testing.T) {
	useFastRecorderOptions(t)
	b, err := NewBoard(testPath(t))
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	defer b.Close()

	sub := subscribeTracer(t, b.Tracer)
	defer sub.Close()

	b.Assign("player1", "alive")
	waitBatch(t, sub)
	b.Assign("player2", "alive")
	waitBatch(t, sub)

	snap := currentBoardState(t, b)
	if snap["player1"] != "alive" || snap["player2"] != "alive" {
		t.Fatalf("unexpected state after assigns: %v", snap)
	}

	b.Remove("player1")
	waitBatch(t, sub)

	snap = currentBoardState(t, b)
	if _, ok := snap["player1"]; ok {
		t.Fatalf("expected player1 removed, state = %v", snap)
	}
	if snap["player2"] != "alive" {
		t.Fatalf("expected player2 untouched, state = %v", snap)
	}
}

func TestBoardApplyDoesNotMutateSharedMap(t *testing.T) {
	k := boardKind{}
	initial := BoardState{"a": "1"}
	next := k.Apply(initial, TimedEvent{Event: BoardEvent{Kind: BoardEventAssign, Key: "b", Value: "2"}}).(BoardState)

	if _, ok := initial["b"]; ok {
		t.Fatalf("Apply mutated the original map in place")
	}
	if next["a"] != "1" || next["b"] != "2" {
		t.Fatalf("unexpected next state: %v", next)
	}
}

func currentBoardState(t *testing.T, b *Board) BoardState {
	t.Helper()
	sub := subscribeTracer(t, b.Tracer)
	defer sub.Close()
	return sub.Snapshot.(BoardState)
}
