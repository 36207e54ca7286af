package flowbus

import "encoding/json"

// PulseStreamType is the wire stream-type tag for Pulse flows.
const PulseStreamType = "flowbus.pulse.v0"

// PulseSample is one (timestamp, value) point kept in a Pulse's ring buffer.
type PulseSample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// PulseState is a Pulse flow's snapshot: a bounded ring of recent samples.
// The Frame is replaced wholesale on every Apply (via Frame.Clone) rather
// than mutated in place, so a snapshot captured before an Apply never
// observes samples added after it.
type PulseState struct {
	Depth int
	Frame *Frame[PulseSample]
}

// MarshalJSON serializes the current ring contents in insertion order
// (oldest first), matching spec.md §4.2's Frame serialization contract.
func (s PulseState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Depth   int           `json:"depth"`
		Samples []PulseSample `json:"samples"`
	}{Depth: s.Depth, Samples: s.Frame.Values()})
}

// PulseEventKind discriminates a Pulse flow's two event variants.
type PulseEventKind string

const (
	// PulseEventAdd appends a new sample to the ring.
	PulseEventAdd PulseEventKind = "add"
	// PulseEventSet resets the ring to a single sample.
	PulseEventSet PulseEventKind = "set"
)

// PulseEvent is a Pulse flow's event: either Add(value) or Set(value).
type PulseEvent struct {
	Kind  PulseEventKind `json:"kind"`
	Value float64        `json:"value"`
}

type pulseKind struct{}

func (pulseKind) StreamType() string { return PulseStreamType }

func (pulseKind) Apply(state any, evt TimedEvent) any {
	s := state.(PulseState)
	e := evt.Event.(PulseEvent)

	var next *Frame[PulseSample]
	switch e.Kind {
	case PulseEventSet:
		next = NewFrame[PulseSample](s.Depth)
	default:
		next = s.Frame.Clone()
	}
	next.Insert(PulseSample{Timestamp: evt.Timestamp, Value: e.Value})
	return PulseState{Depth: s.Depth, Frame: next}
}

// Pulse is a tracer specialized for the Pulse flow kind.
type Pulse struct {
	*Tracer
}

// NewPulse registers a Pulse flow at path with a ring buffer of the given
// depth (clamped to at least 1 by Frame).
func NewPulse(path Path, depth int) (*Pulse, error) {
	if depth < 1 {
		depth = 1
	}
	initial := PulseState{Depth: depth, Frame: NewFrame[PulseSample](depth)}
	t, err := NewTracer(path, PulseStreamType, pulseKind{}, initial, ModePush)
	if err != nil {
		return nil, err
	}
	return &Pulse{Tracer: t}, nil
}

// Add appends value as a new sample.
func (p *Pulse) Add(value float64) {
	p.Send(PulseEvent{Kind: PulseEventAdd, Value: value})
}

// Set resets the ring to a single sample holding value.
func (p *Pulse) Set(value float64) {
	p.Send(PulseEvent{Kind: PulseEventSet, Value: value})
}
