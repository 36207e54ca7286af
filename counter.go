package flowbus

// CounterStreamType is the wire stream-type tag for Counter flows.
const CounterStreamType = "flowbus.counter.v0"

// CounterState is a Counter flow's snapshot: a running total.
type CounterState struct {
	Value float64 `json:"value"`
}

// CounterInc is the only Counter event: increment the running total by
// Delta (which may be negative).
type CounterInc struct {
	Delta float64 `json:"delta"`
}

// counterKind implements Kind for Counter flows. Counter declares no
// actions, matching spec.md §3.
type counterKind struct{}

func (counterKind) StreamType() string { return CounterStreamType }

func (counterKind) Apply(state any, evt TimedEvent) any {
	s := state.(CounterState)
	inc := evt.Event.(CounterInc)
	s.Value += inc.Delta
	return s
}

// Counter is a tracer specialized for the Counter flow kind.
type Counter struct {
	*Tracer
}

// NewCounter registers a Counter flow at path, starting at zero. The tracer
// reports IsActive() == false until the recorder sees its first subscriber.
func NewCounter(path Path) (*Counter, error) {
	t, err := NewTracer(path, CounterStreamType, counterKind{}, CounterState{}, ModePush)
	if err != nil {
		return nil, err
	}
	return &Counter{Tracer: t}, nil
}

// Inc increments the counter by delta (use a negative delta to decrement).
func (c *Counter) Inc(delta float64) {
	c.Send(CounterInc{Delta: delta})
}
