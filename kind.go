package flowbus

// Kind is a closed flow variant: it declares a stream-type tag and a pure
// Apply reducer. The Rust original expresses this as a trait generic over
// State/Event/Action; here it is an interface dispatching on boxed state
// and event values instead of a generic Kind[S, E, A]. A single Recorder
// implementation can then hold any Kind without per-kind instantiation,
// at the cost of a type assertion inside each Apply (see DESIGN.md for why
// generics were set aside for this exercise).
//
// Apply must be pure and total: no I/O, no clock access, no randomness,
// and it must never panic for a well-typed state/event pair.
type Kind interface {
	StreamType() string
	Apply(state any, event TimedEvent) any
}

// ActionKind is implemented by flow kinds that accept actions from
// subscribers (Click, Switch, Slider, Selector). Kinds without actions
// (Counter, Gauge, Pulse, Board) do not implement it; an action sent to one
// is not rejected: the router and provider session forward its payload to
// the recorder undecoded, and no error is returned.
type ActionKind interface {
	Kind
	// DecodeAction validates an inbound action payload and returns the
	// kind's typed action value, or an error if the payload does not decode.
	DecodeAction(payload any) (any, error)
}
