package flowbus

import "fmt"

// ClickStreamType is the wire stream-type tag for Click flows.
const ClickStreamType = "flowbus.click.v0"

// ClickState is a Click flow's snapshot: just its display label. A click
// produces no persisted event (spec.md §3 "Event=none"); only its Action
// round-trips to the host.
type ClickState struct {
	Label string `json:"label"`
}

// ClickAction is the only Click action: the button was pressed. It carries
// no payload.
type ClickAction struct{}

type clickKind struct{}

func (clickKind) StreamType() string { return ClickStreamType }

// Apply is never exercised in practice (Click has no events to send) but
// must stay total per spec.md §4.1; it returns state unchanged.
func (clickKind) Apply(state any, _ TimedEvent) any { return state }

func (clickKind) DecodeAction(payload any) (any, error) {
	if payload != nil {
		if m, ok := payload.(map[string]any); !ok || len(m) != 0 {
			return nil, fmt.Errorf("flowbus: click action takes no payload, got %T", payload)
		}
	}
	return ClickAction{}, nil
}

// Click is a tracer specialized for the Click flow kind.
type Click struct {
	*Tracer
	link *Link
}

// NewClick registers a Click flow at path with the given label, bridging
// its Action stream onto link (per spec.md §4.9; link may be nil if the
// host only wants SubscribeActions/OnAction directly).
func NewClick(path Path, label string, link *Link) (*Click, error) {
	t, err := NewTracer(path, ClickStreamType, clickKind{}, ClickState{Label: label}, ModePush)
	if err != nil {
		return nil, err
	}
	bridgeWidgetLink(t, link)
	return &Click{Tracer: t, link: link}, nil
}
