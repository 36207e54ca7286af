package flowbus

import "errors"

// Sentinel errors returned across the flow/tracer/recorder/registry/session
// boundary. Callers should use errors.Is against these rather than matching
// on message text.
var (
	// ErrRegistrationConflict is returned by the registry when a path is
	// already registered to a live recorder.
	ErrRegistrationConflict = errors.New("flowbus: path already registered")

	// ErrTransportClosed names an operation on a subscriber or session
	// whose transport has already closed. No function in this module
	// returns it.
	ErrTransportClosed = errors.New("flowbus: transport closed")

	// ErrBackpressureOverflow names a subscriber whose outbound buffer
	// overflowed. No function in this module returns it: the recorder
	// drops such a subscription and signals it on Subscription.Dropped.
	ErrBackpressureOverflow = errors.New("flowbus: subscriber backpressure overflow")

	// ErrProtocolViolation is returned when a wire envelope is malformed
	// or names an unknown message variant.
	ErrProtocolViolation = errors.New("flowbus: protocol violation")

	// ErrInapplicable is returned for operations that do not apply to a
	// flow's mode, e.g. SubscribeActions or OnAction in pull mode. An action
	// sent to a flow kind that declares none does not produce it; see
	// ActionKind.
	ErrInapplicable = errors.New("flowbus: operation inapplicable")

	// ErrClock is returned when an event timestamp could not be derived
	// (e.g. the system clock precedes the Unix epoch); the event is
	// dropped rather than recorded with a bogus timestamp.
	ErrClock = errors.New("flowbus: invalid clock reading")

	// ErrNotFound names a lookup of an unregistered path. No function in
	// this module returns it: registry lookups report a missing path
	// through a false ok result.
	ErrNotFound = errors.New("flowbus: path not found")

	// ErrClosed names an operation performed after Close. No Tracer or Link
	// method returns it.
	ErrClosed = errors.New("flowbus: already closed")
)
