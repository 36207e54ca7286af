package flowbus

import "fmt"

// SwitchStreamType is the wire stream-type tag for Switch flows.
const SwitchStreamType = "flowbus.switch.v0"

// SwitchState is a Switch flow's snapshot.
type SwitchState struct {
	Label string `json:"label"`
	On    bool   `json:"on"`
}

// SwitchTurn is the Switch flow's only event, also its only action shape:
// the wire original treats Event and Action identically (flip to On).
type SwitchTurn struct {
	On bool `json:"on"`
}

type switchKind struct{}

func (switchKind) StreamType() string { return SwitchStreamType }

func (switchKind) Apply(state any, evt TimedEvent) any {
	s := state.(SwitchState)
	turn := evt.Event.(SwitchTurn)
	s.On = turn.On
	return s
}

func (switchKind) DecodeAction(payload any) (any, error) {
	switch v := payload.(type) {
	case SwitchTurn:
		return v, nil
	case map[string]any:
		on, _ := v["on"].(bool)
		return SwitchTurn{On: on}, nil
	default:
		return nil, fmt.Errorf("flowbus: unrecognized switch action payload %T", payload)
	}
}

// Switch is a tracer specialized for the Switch flow kind.
type Switch struct {
	*Tracer
	link *Link
}

// NewSwitch registers a Switch flow at path with the given label and
// initial on/off state, bridging its Action stream onto link.
func NewSwitch(path Path, label string, on bool, link *Link) (*Switch, error) {
	t, err := NewTracer(path, SwitchStreamType, switchKind{}, SwitchState{Label: label, On: on}, ModePush)
	if err != nil {
		return nil, err
	}
	bridgeWidgetLink(t, link)
	return &Switch{Tracer: t, link: link}, nil
}

// Turn publishes a new on/off state, typically called by the host task in
// response to an ActivityAction received on the widget's Link.
func (s *Switch) Turn(on bool) {
	s.Send(SwitchTurn{On: on})
}
