package flowbus

import (
	"errors"
	"testing"
	"time"

	"flowbus/internal/registry"
)

func TestNewTracerRejectsDuplicatePath(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "dup")

	c1, err := NewCounter(p)
	if err != nil {
		t.Fatalf("first NewCounter: %v", err)
	}
	defer c1.Close()

	_, err = NewCounter(p)
	if err == nil {
		t.Fatalf("expected second registration at the same path to fail")
	}
	if !errors.Is(err, ErrRegistrationConflict) {
		t.Fatalf("expected ErrRegistrationConflict, got %v", err)
	}
}

func TestNewTracerRejectsEmptyPath(t *testing.T) {
	if _, err := NewCounter(Path{}); err == nil {
		t.Fatalf("expected empty path to be rejected")
	}
}

func TestTracerCloneKeepsFlowAliveUntilAllClosed(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "clone")

	c, err := NewCounter(p)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	clone := &Counter{Tracer: c.Clone()}

	c.Close()

	reg := registry.Default()
	rec := lookupRecorder(t, reg, p)
	select {
	case <-rec.Done():
		t.Fatalf("recorder terminated after only one of two clones closed")
	case <-time.After(20 * time.Millisecond):
	}

	clone.Close()
	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("recorder did not terminate after last clone closed")
	}
}

func TestTracerPushModeSendDeliversBatch(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "push")

	c, err := NewCounter(p)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	defer c.Close()

	reg := registry.Default()
	rec := lookupRecorder(t, reg, p)
	sub := rec.Subscribe()
	defer sub.Close()

	c.Inc(3)
	batch := waitBatch(t, sub)
	if len(batch.Events) != 1 {
		t.Fatalf("expected one event in batch, got %d", len(batch.Events))
	}
	inc := batch.Events[0].Event.(CounterInc)
	if inc.Delta != 3 {
		t.Fatalf("Delta = %v, want 3", inc.Delta)
	}
}

func TestTracerPullModeInapplicableActions(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "pull")

	tr, err := NewTracer(p, "flowbus.test.v0", counterKind{}, CounterState{}, ModePull)
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	defer tr.Close()

	if tr.Mode() != ModePull {
		t.Fatalf("Mode() = %v, want ModePull", tr.Mode())
	}

	tr.Send(CounterInc{Delta: 5})

	if _, err := tr.SubscribeActions(); err == nil {
		t.Fatalf("expected SubscribeActions to fail in pull mode")
	}
	if err := tr.OnAction(func(any) {}); err == nil {
		t.Fatalf("expected OnAction to fail in pull mode")
	}
}

func TestTracerIsActiveLifecycle(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "active")

	c, err := NewCounter(p)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	defer c.Close()

	if c.IsActive() {
		t.Fatalf("expected flow to start inactive with no subscribers")
	}

	reg := registry.Default()
	rec := lookupRecorder(t, reg, p)
	sub := rec.Subscribe()
	if !c.IsActive() {
		t.Fatalf("expected flow to become active once subscribed")
	}

	sub.Close()
	deadline := time.After(time.Second)
	for c.IsActive() {
		select {
		case <-deadline:
			t.Fatalf("expected flow to become inactive after unsubscribe")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestTracerSubscribeActionsForwardsPublishedAction(t *testing.T) {
	useFastRecorderOptions(t)
	p := testPath(t, "actions")

	click, err := NewClick(p, "press me", nil)
	if err != nil {
		t.Fatalf("NewClick: %v", err)
	}
	defer click.Close()

	stream, err := click.SubscribeActions()
	if err != nil {
		t.Fatalf("SubscribeActions: %v", err)
	}

	reg := registry.Default()
	rec := lookupRecorder(t, reg, p)
	rec.PublishAction(ClickAction{})

	select {
	case got := <-stream:
		if _, ok := got.(ClickAction); !ok {
			t.Fatalf("expected ClickAction, got %T", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded action")
	}
}
