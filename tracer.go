package flowbus

import (
	"fmt"
	"sync"
	"time"

	"flowbus/internal/logging"
	"flowbus/internal/recorder"
	"flowbus/internal/registry"
)

// Mode selects where a flow's authoritative state lives: Push keeps it in
// the recorder and streams every event to it; Pull keeps it in a mutex
// shared between tracer and recorder, sampled on an interval (spec.md §4.3).
type Mode int

const (
	// ModePush enqueues every Send to the recorder's unbounded queue.
	ModePush Mode = iota
	// ModePull applies Send synchronously to a shared state cell that the
	// recorder samples periodically instead of being streamed events.
	ModePull
)

func (m Mode) String() string {
	if m == ModePull {
		return "pull"
	}
	return "push"
}

// DefaultPullInterval is how often a pull-mode recorder resamples its
// shared state cell when a Tracer doesn't override it.
const DefaultPullInterval = 50 * time.Millisecond

// recorderOptions holds the process-wide defaults new tracers build their
// recorder with; Start configures it from Config so every flow created
// after startup honors the operator's coalescing/backpressure knobs.
var recorderOptionsMu sync.RWMutex
var recorderOptions = recorder.Options{}

// configureRecorderOptions is called by Start to apply operator-configured
// coalescing and buffering defaults to every recorder created afterward.
func configureRecorderOptions(opts recorder.Options) {
	recorderOptionsMu.Lock()
	recorderOptions = opts
	recorderOptionsMu.Unlock()
}

func currentRecorderOptions() recorder.Options {
	recorderOptionsMu.RLock()
	defer recorderOptionsMu.RUnlock()
	return recorderOptions
}

// tracerCore is the state shared by every clone of a Tracer: the path,
// description, recorder handle, and (in pull mode) the shared state cell.
// Cloning a Tracer is O(1) because it only copies a pointer to this struct
// and bumps the recorder's clone refcount.
type tracerCore struct {
	path  Path
	desc  Description
	kind  Kind
	mode  Mode
	rec   *recorder.Recorder
	reg   *registry.Registry
	clock func() time.Time
	cell  *recorder.PullCell
}

// Tracer is the producer-side handle for a flow (spec.md §4.3): it owns the
// path, a mode, a send channel into its recorder, and a broadcast channel
// for actions routed back from subscribers. Cloning shares all of these;
// Close releases this clone's share of the recorder's lifetime.
type Tracer struct {
	core      *tracerCore
	closeOnce sync.Once
}

// NewTracer registers a new flow at path and returns its producer-side
// handle. A second NewTracer for a path already present in the registry
// fails with ErrRegistrationConflict (spec.md's resolved Open Question:
// duplicate registration errors rather than deduping or silently replacing).
func NewTracer(path Path, streamType string, kind Kind, initial any, mode Mode) (*Tracer, error) {
	if !path.Valid() {
		return nil, fmt.Errorf("flowbus: %w: empty path", ErrProtocolViolation)
	}

	opts := currentRecorderOptions()
	core := &tracerCore{
		path:  path,
		desc:  Description{Path: path, Info: DefaultInfo(path, streamType), StreamType: streamType},
		kind:  kind,
		mode:  mode,
		clock: time.Now,
	}

	var rec *recorder.Recorder
	if mode == ModePull {
		core.cell = recorder.NewPullCell(initial)
		rec = recorder.NewPull(path.String(), streamType, core.cell, DefaultPullInterval, opts)
	} else {
		rec = recorder.New(path.String(), streamType, kind, initial, opts)
	}
	core.rec = rec

	reg := registry.Default()
	core.reg = reg
	err := reg.Register(path.String(), registry.Description{
		Path:       path.String(),
		Info:       core.desc.Info,
		StreamType: streamType,
	}, rec)
	if err != nil {
		rec.Release()
		return nil, fmt.Errorf("%w: %s", ErrRegistrationConflict, path.String())
	}

	// Release the registry slot once the recorder actually terminates,
	// regardless of which clone's Close call happened to be the last one
	// (spec.md §4.4 "release registry slot" / §4.5 unregister-on-terminate).
	go func() {
		<-rec.Done()
		reg.Unregister(path.String())
	}()

	return &Tracer{core: core}, nil
}

// Clone returns a new handle sharing this tracer's recorder, description,
// and channels; it is O(1) and increments the recorder's clone refcount so
// the flow stays alive until every clone (including this one) is Closed.
func (t *Tracer) Clone() *Tracer {
	t.core.rec.Retain()
	return &Tracer{core: t.core}
}

// Path returns the flow's identity.
func (t *Tracer) Path() Path { return t.core.path }

// Description returns the flow's catalog entry.
func (t *Tracer) Description() Description { return t.core.desc }

// Mode returns whether this tracer is push- or pull-mode.
func (t *Tracer) Mode() Mode { return t.core.mode }

// IsActive reports whether at least one dashboard subscriber is currently
// attached, letting producers skip expensive event construction when
// nobody is watching. Correctness never depends on this optimization.
func (t *Tracer) IsActive() bool { return t.core.rec.IsActive() }

// WithClock overrides the tracer's timestamp source; used by tests that
// need deterministic TimedEvent.Timestamp values.
func (t *Tracer) WithClock(clock func() time.Time) *Tracer {
	t.core.clock = clock
	return t
}

// Send stamps event with the current time and applies it. In push mode this
// enqueues to the recorder's unbounded queue and never blocks; in pull mode
// it applies synchronously under the shared state cell's mutex. The only
// failure mode (spec.md §4.3) is a clock reading before the Unix epoch,
// which drops the event and logs rather than returning an error to a
// caller that cannot usefully react to it.
func (t *Tracer) Send(event any) {
	ts, err := nowMicros(t.core.clock)
	if err != nil {
		logging.L().Warn("dropping event: invalid clock reading",
			logging.String("path", t.core.path.String()))
		return
	}
	t.SendAt(event, ts)
}

// SendAt is Send with a caller-supplied monotonic-unix-microseconds
// timestamp, for producers that already have one (e.g. replaying captured
// events) rather than sampling the clock.
func (t *Tracer) SendAt(event any, timestampMicros int64) {
	evt := recorder.TimedEvent{Timestamp: timestampMicros, Event: event}
	if t.core.mode == ModePull {
		t.core.cell.Apply(t.core.kind, evt)
		return
	}
	t.core.rec.Send(evt)
}

// ActionStream is what SubscribeActions returns: a channel of decoded
// action payloads forwarded from subscribers via the recorder.
type ActionStream = <-chan any

// SubscribeActions returns a stream of actions subscribers send back for
// this flow. It fails with ErrInapplicable in pull mode, since actions are
// push-only (spec.md §4.3).
func (t *Tracer) SubscribeActions() (ActionStream, error) {
	if t.core.mode == ModePull {
		return nil, fmt.Errorf("%w: SubscribeActions is push-mode only", ErrInapplicable)
	}
	return t.core.rec.Actions(), nil
}

// OnAction registers cb to be invoked for every action forwarded by
// subscribers, from a background goroutine this call spawns. It fails with
// ErrInapplicable in pull mode for the same reason as SubscribeActions.
func (t *Tracer) OnAction(cb func(action any)) error {
	stream, err := t.SubscribeActions()
	if err != nil {
		return err
	}
	go func() {
		for action := range stream {
			cb(action)
		}
	}()
	return nil
}

// Close releases this clone's share of the flow's lifetime. Once every
// clone (the original Tracer and every value returned by Clone) has been
// Closed, the recorder drains its queued events, emits its final frame,
// unsubscribes every subscriber, and releases its registry slot (spec.md
// §4.4 Draining state). Close is idempotent for a given clone.
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		t.core.rec.Release()
	})
}
