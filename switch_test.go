package flowbus

import (
	"testing"
	"time"

	"flowbus/internal/registry"
)

func TestSwitchDecodeActionFromWireMap(t *testing.T) {
	k := switchKind{}
	decoded, err := k.DecodeAction(map[string]any{"on": true})
	if err != nil {
		t.Fatalf("DecodeAction: %v", err)
	}
	if decoded.(SwitchTurn).On != true {
		t.Fatalf("expected On = true, got %v", decoded)
	}
	if _, err := k.DecodeAction(42); err == nil {
		t.Fatalf("expected unrecognized payload to be rejected")
	}
}

// TestSwitchRoundTrip exercises the host-reacts-to-action loop: a subscriber
// publishes a SwitchTurn action, the host task (here, the test) receives it
// on the widget's Link and calls Turn to re-publish the new state, which a
// subscriber observes as a delta.
func TestSwitchRoundTrip(t *testing.T) {
	useFastRecorderOptions(t)
	link := NewLink()
	sw, err := NewSwitch(testPath(t), "power", false, link)
	if err != nil {
		t.Fatalf("NewSwitch: %v", err)
	}
	defer sw.Close()

	<-link.Receiver() // Awake

	sub := subscribeTracer(t, sw.Tracer)
	defer sub.Close()
	<-link.Receiver() // Connected

	if sub.Snapshot.(SwitchState).On {
		t.Fatalf("expected initial state Off")
	}

	rec := lookupRecorder(t, registry.Default(), sw.Path())
	rec.PublishAction(SwitchTurn{On: true})

	select {
	case activity := <-link.Receiver():
		if activity.Kind != ActivityAction {
			t.Fatalf("expected ActivityAction, got %v", activity.Kind)
		}
		turn := activity.Payload.(SwitchTurn)
		sw.Turn(turn.On)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for action to reach the link")
	}

	batch := waitBatch(t, sub)
	got := batch.Events[0].Event.(SwitchTurn)
	if !got.On {
		t.Fatalf("expected round-tripped SwitchTurn{On: true}, got %v", got)
	}
}
