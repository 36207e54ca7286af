package flowbus

import "fmt"

// SliderStreamType is the wire stream-type tag for Slider flows.
const SliderStreamType = "flowbus.slider.v0"

// SliderState is a Slider flow's snapshot.
type SliderState struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Step  float64 `json:"step"`
	Value float64 `json:"value"`
}

// SliderSet is the Slider flow's only event/action shape: move to Value.
type SliderSet struct {
	Value float64 `json:"value"`
}

type sliderKind struct{}

func (sliderKind) StreamType() string { return SliderStreamType }

func (sliderKind) Apply(state any, evt TimedEvent) any {
	s := state.(SliderState)
	set := evt.Event.(SliderSet)
	s.Value = clampSlider(s, set.Value)
	return s
}

func clampSlider(s SliderState, v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

func (sliderKind) DecodeAction(payload any) (any, error) {
	switch v := payload.(type) {
	case SliderSet:
		return v, nil
	case map[string]any:
		raw, ok := v["value"]
		if !ok {
			return nil, fmt.Errorf("flowbus: slider action missing value")
		}
		f, ok := toFloat(raw)
		if !ok {
			return nil, fmt.Errorf("flowbus: slider action value not numeric: %v", raw)
		}
		return SliderSet{Value: f}, nil
	default:
		return nil, fmt.Errorf("flowbus: unrecognized slider action payload %T", payload)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Slider is a tracer specialized for the Slider flow kind.
type Slider struct {
	*Tracer
	link *Link
}

// NewSlider registers a Slider flow at path with the given label, range,
// step, and initial value, bridging its Action stream onto link.
func NewSlider(path Path, label string, min, max, step, value float64, link *Link) (*Slider, error) {
	initial := SliderState{Label: label, Min: min, Max: max, Step: step}
	initial.Value = clampSlider(initial, value)
	t, err := NewTracer(path, SliderStreamType, sliderKind{}, initial, ModePush)
	if err != nil {
		return nil, err
	}
	bridgeWidgetLink(t, link)
	return &Slider{Tracer: t, link: link}, nil
}

// Set publishes a new slider value, clamped to [Min, Max].
func (s *Slider) Set(value float64) {
	s.Send(SliderSet{Value: value})
}
