package flowbus

// GaugeStreamType is the wire stream-type tag for Gauge flows.
const GaugeStreamType = "flowbus.gauge.v0"

// Range clamps a Gauge's value into [Min, Max], ported from the Rust
// original's `rill-protocol::Range` (SPEC_FULL.md §4).
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp restricts v into the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// GaugeState is a Gauge flow's snapshot.
type GaugeState struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Range     Range   `json:"range"`
}

// GaugeSet is the only Gauge event: set the instantaneous value.
type GaugeSet struct {
	Value float64 `json:"value"`
}

type gaugeKind struct{}

func (gaugeKind) StreamType() string { return GaugeStreamType }

func (gaugeKind) Apply(state any, evt TimedEvent) any {
	s := state.(GaugeState)
	set := evt.Event.(GaugeSet)
	s.Value = s.Range.Clamp(set.Value)
	s.Timestamp = evt.Timestamp
	return s
}

// Gauge is a tracer specialized for the Gauge flow kind.
type Gauge struct {
	*Tracer
}

// NewGauge registers a Gauge flow at path with the declared value range.
func NewGauge(path Path, valueRange Range) (*Gauge, error) {
	t, err := NewTracer(path, GaugeStreamType, gaugeKind{}, GaugeState{Range: valueRange}, ModePush)
	if err != nil {
		return nil, err
	}
	return &Gauge{Tracer: t}, nil
}

// Set publishes a new instantaneous value, clamped to the gauge's range.
func (g *Gauge) Set(value float64) {
	g.Send(GaugeSet{Value: value})
}
