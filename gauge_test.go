package flowbus

import "testing"

func TestRangeClamp(t *testing.T) {
	r := Range{Min: 0, Max: 100}
	cases := []struct {
		in, want float64
	}{
		{-10, 0},
		{150, 100},
		{42, 42},
	}
	for _, c := range cases {
		if got := r.Clamp(c.in); got != c.want {
			t.Fatalf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestGaugeSetClampsAndStampsTimestamp(t *testing.T) {
	useFastRecorderOptions(t)
	g, err := NewGauge(testPath(t), Range{Min: 0, Max: 10})
	if err != nil {
		t.Fatalf("NewGauge: %v", err)
	}
	defer g.Close()

	sub := subscribeTracer(t, g.Tracer)
	defer sub.Close()

	g.Set(99)
	batch := waitBatch(t, sub)
	if len(batch.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(batch.Events))
	}
	if batch.Events[0].Timestamp <= 0 {
		t.Fatalf("expected a positive stamped timestamp")
	}

	applied := gaugeKind{}.Apply(GaugeState{Range: Range{Min: 0, Max: 10}}, batch.Events[0])
	state := applied.(GaugeState)
	if state.Value != 10 {
		t.Fatalf("clamped Value = %v, want 10", state.Value)
	}
}
