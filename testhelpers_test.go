package flowbus

import (
	"testing"
	"time"

	"flowbus/internal/recorder"
	"flowbus/internal/registry"
)

// testPath builds a path unique to the running test, so tests sharing the
// process-wide registry.Default() singleton never collide on registration.
func testPath(t *testing.T, segs ...string) Path {
	t.Helper()
	all := append([]string{t.Name()}, segs...)
	return NewPath(all...)
}

// useFastRecorderOptions points every tracer created for the duration of the
// test at a short coalescing window, so tests don't wait out the 10ms
// production default per assertion.
func useFastRecorderOptions(t *testing.T) {
	t.Helper()
	prev := currentRecorderOptions()
	configureRecorderOptions(recorder.Options{
		CoalesceWindow:       time.Millisecond,
		CoalesceBatch:        1,
		SubscriberBufferSize: 16,
	})
	t.Cleanup(func() {
		configureRecorderOptions(prev)
	})
}

// waitBatch reads one Batch off sub.Updates, failing the test if none
// arrives within the timeout.
func waitBatch(t *testing.T, sub *recorder.Subscription) recorder.Batch {
	t.Helper()
	select {
	case b, ok := <-sub.Updates:
		if !ok {
			t.Fatalf("subscription closed before a batch arrived")
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a batch")
	}
	return recorder.Batch{}
}

// lookupRecorder fetches the live recorder registered at p, failing the test
// if nothing is registered there.
func lookupRecorder(t *testing.T, reg *registry.Registry, p Path) *recorder.Recorder {
	t.Helper()
	entry, ok := reg.Lookup(p.String())
	if !ok {
		t.Fatalf("expected %q to be registered", p.String())
	}
	return entry.Recorder
}

// subscribeTracer subscribes directly to tr's underlying recorder, bypassing
// the wire protocol, for tests that only care about the flow kind's Apply
// and delta-batching behavior.
func subscribeTracer(t *testing.T, tr *Tracer) *recorder.Subscription {
	t.Helper()
	rec := lookupRecorder(t, registry.Default(), tr.Path())
	return rec.Subscribe()
}
