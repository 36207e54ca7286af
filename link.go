package flowbus

// ActivityKind discriminates the lifecycle/action events an interactive
// widget's Link carries (spec.md §4.9).
type ActivityKind string

const (
	// ActivityAwake fires once, when the Link is created.
	ActivityAwake ActivityKind = "awake"
	// ActivityConnected fires when the widget's flow gains its first
	// subscriber.
	ActivityConnected ActivityKind = "connected"
	// ActivitySuspended fires when the widget's flow loses its last
	// subscriber.
	ActivitySuspended ActivityKind = "suspended"
	// ActivityAction fires for every decoded Action a subscriber sends
	// back; Payload carries the kind-specific action value.
	ActivityAction ActivityKind = "action"
)

// Activity is one envelope delivered on a Link's receiver.
type Activity struct {
	Kind    ActivityKind
	Payload any
}

// Link is the bidirectional channel described in spec.md §4.9: Sender is
// passed to an interactive widget's constructor so the widget can publish
// lifecycle and action events; Receiver is drained by the host task that
// reacts to them (typically by calling a mutating method on the widget,
// e.g. Switch.Turn, which closes the loop by re-publishing the new state).
type Link struct {
	ch chan Activity
}

// DefaultLinkBuffer bounds a Link's channel; the host task is expected to
// drain it promptly, so this only absorbs bursts.
const DefaultLinkBuffer = 32

// NewLink constructs a Link with the default buffer size.
func NewLink() *Link {
	return &Link{ch: make(chan Activity, DefaultLinkBuffer)}
}

// Sender returns the producer-side handle passed to a widget constructor.
func (l *Link) Sender() *LinkSender { return &LinkSender{ch: l.ch} }

// Receiver returns the channel the host task ranges over to react to
// lifecycle and action events.
func (l *Link) Receiver() <-chan Activity { return l.ch }

// Close closes the underlying channel; safe to call once the widget that
// owns this Link has been Closed and nothing else is sending.
func (l *Link) Close() { close(l.ch) }

// LinkSender is the write-only half of a Link, given to a widget's
// constructor. Send never blocks: when the buffer is full the new activity
// is dropped rather than stalling the widget's recorder callback.
type LinkSender struct {
	ch chan Activity
}

// Send publishes an activity envelope, dropping it silently if the
// receiver's buffer is full.
func (s *LinkSender) Send(a Activity) {
	if s == nil {
		return
	}
	select {
	case s.ch <- a:
	default:
	}
}

// bridgeWidgetLink wires a widget tracer's lifecycle and action events into
// link: Connected/Suspended on subscriber attach/detach, Action for every
// subscriber action forwarded by the recorder, and one Awake at setup.
func bridgeWidgetLink(t *Tracer, link *Link) {
	if link == nil {
		return
	}
	sender := link.Sender()
	sender.Send(Activity{Kind: ActivityAwake})

	t.core.rec.OnActiveChange(func(active bool) {
		if active {
			sender.Send(Activity{Kind: ActivityConnected})
		} else {
			sender.Send(Activity{Kind: ActivitySuspended})
		}
	})

	actions := t.core.rec.Actions()
	go func() {
		for action := range actions {
			sender.Send(Activity{Kind: ActivityAction, Payload: action})
		}
	}()
}
