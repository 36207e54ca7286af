package flowbus

import "fmt"

// SelectorStreamType is the wire stream-type tag for Selector flows.
const SelectorStreamType = "flowbus.selector.v0"

// SelectorState is a Selector flow's snapshot.
type SelectorState struct {
	Label    string   `json:"label"`
	Options  []string `json:"options"`
	Selected *string  `json:"selected,omitempty"`
}

// SelectorSelect is the Selector flow's only event/action shape: select an
// option, or clear the selection when Option is nil.
type SelectorSelect struct {
	Option *string `json:"option,omitempty"`
}

type selectorKind struct{}

func (selectorKind) StreamType() string { return SelectorStreamType }

func (selectorKind) Apply(state any, evt TimedEvent) any {
	s := state.(SelectorState)
	sel := evt.Event.(SelectorSelect)
	if sel.Option == nil {
		s.Selected = nil
		return s
	}
	for _, opt := range s.Options {
		if opt == *sel.Option {
			chosen := *sel.Option
			s.Selected = &chosen
			return s
		}
	}
	// Not one of the declared options: ignore rather than fail (Apply must
	// be total), leaving Selected unchanged.
	return s
}

func (selectorKind) DecodeAction(payload any) (any, error) {
	switch v := payload.(type) {
	case SelectorSelect:
		return v, nil
	case map[string]any:
		raw, ok := v["option"]
		if !ok || raw == nil {
			return SelectorSelect{}, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("flowbus: selector action option not a string: %v", raw)
		}
		return SelectorSelect{Option: &s}, nil
	default:
		return nil, fmt.Errorf("flowbus: unrecognized selector action payload %T", payload)
	}
}

// Selector is a tracer specialized for the Selector flow kind.
type Selector struct {
	*Tracer
	link *Link
}

// NewSelector registers a Selector flow at path with the given label and
// option list, starting with nothing selected, bridging its Action stream
// onto link.
func NewSelector(path Path, label string, options []string, link *Link) (*Selector, error) {
	initial := SelectorState{Label: label, Options: append([]string(nil), options...)}
	t, err := NewTracer(path, SelectorStreamType, selectorKind{}, initial, ModePush)
	if err != nil {
		return nil, err
	}
	bridgeWidgetLink(t, link)
	return &Selector{Tracer: t, link: link}, nil
}

// Select publishes a new selection, or clears it when option is nil.
func (s *Selector) Select(option *string) {
	s.Send(SelectorSelect{Option: option})
}
