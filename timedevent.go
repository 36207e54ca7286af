package flowbus

import (
	"time"

	"flowbus/internal/recorder"
)

// TimedEvent pairs a flow-kind event with the monotonic-unix-microseconds
// timestamp the tracer stamped it with. The event payload is boxed as any
// so a single Recorder implementation can carry every flow kind's concrete
// event type without a generic Recorder[S,E,A]; each Kind's Apply method
// type-asserts it back to the kind's concrete Event type.
//
// This is an alias, not a new struct: it resolves to the identical type
// internal/recorder.Kind dispatches on, so a flowbus.Kind implementation
// satisfies recorder.Kind without either package importing the other's
// interface declaration.
type TimedEvent = recorder.TimedEvent

// nowMicros returns the current time as monotonic-unix-microseconds, or an
// error (ErrClock) if the clock reads before the Unix epoch.
func nowMicros(clock func() time.Time) (int64, error) {
	t := clock()
	if t.Before(time.Unix(0, 0)) {
		return 0, ErrClock
	}
	return t.UnixMicro(), nil
}
