package recorder

import (
	"reflect"
	"sync"
	"time"

	"flowbus/internal/logging"
)

// PullCell is the mutex-guarded state cell a pull-mode flow shares between
// its Tracer and its Recorder (spec.md §4.3 "state lives in a shared mutex
// owned jointly by tracer and recorder"). Tracer.Send applies an event to
// it synchronously; the Recorder samples it on its own interval rather than
// being pushed events.
type PullCell struct {
	mu    sync.Mutex
	state any
}

// NewPullCell constructs a cell holding initial.
func NewPullCell(initial any) *PullCell { return &PullCell{state: initial} }

// Apply folds evt into the cell's state using kind.Apply, synchronously and
// under the cell's mutex; this is what a pull-mode Tracer.Send calls.
func (c *PullCell) Apply(kind Kind, evt TimedEvent) {
	c.mu.Lock()
	c.state = kind.Apply(c.state, evt)
	c.mu.Unlock()
}

// Snapshot returns the cell's current state under its mutex.
func (c *PullCell) Snapshot() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Batch is a coalesced run of events delivered to a subscriber as a single
// Data message (spec.md §4.4 delta batching).
type Batch struct {
	Events []TimedEvent
}

// Subscription is a live fan-out target. Snapshot is populated once at
// subscribe time; Updates delivers coalesced batches until Close is
// called or the subscription is dropped for backpressure.
type Subscription struct {
	ID       uint64
	Snapshot any
	Updates  <-chan Batch
	Dropped  <-chan struct{}

	recorder *Recorder
	ch       chan Batch
	dropped  chan struct{}
	once     sync.Once
}

// Close removes the subscription from the recorder's fan-out set. Safe to
// call more than once.
func (s *Subscription) Close() {
	if s == nil || s.recorder == nil {
		return
	}
	s.recorder.unsubscribe(s.ID)
}

func (s *Subscription) markDropped() {
	s.once.Do(func() { close(s.dropped) })
}

// Options tunes a Recorder's coalescing and backpressure behavior.
type Options struct {
	CoalesceWindow       time.Duration
	CoalesceBatch        int
	SubscriberBufferSize int
	Clock                func() time.Time
	Logger               *logging.Logger
}

func (o *Options) setDefaults() {
	if o.CoalesceWindow <= 0 {
		o.CoalesceWindow = 10 * time.Millisecond
	}
	if o.CoalesceBatch <= 0 {
		o.CoalesceBatch = 64
	}
	if o.SubscriberBufferSize <= 0 {
		o.SubscriberBufferSize = 128
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.L()
	}
}

// Recorder is the single authoritative owner of one flow's state. One
// recorder exists per registered path; it serializes every event applied
// to State through a single goroutine (the "run loop"), so Apply never
// races even though producers call Send from arbitrary goroutines.
type Recorder struct {
	path       string
	streamType string
	kind       Kind
	opts       Options

	// queue is an unbounded producer->recorder queue guarded by mu: Send
	// appends and signals wake; run drains it under the same lock. This
	// mirrors spec.md §4.3's "lock-free multi-producer single-consumer
	// queue" contract using a mutex-protected slice, which is sufficient
	// since the recorder's own consumption never blocks on producers.
	mu      sync.Mutex
	queue   []TimedEvent
	wake    chan struct{}
	actionQ []any
	state   State
	current any

	subMu   sync.Mutex
	subs    map[uint64]*Subscription
	nextSub uint64

	activeMu sync.RWMutex
	active   bool
	onActive func(bool)

	refMu sync.Mutex
	refs  int

	actions  chan any
	done     chan struct{}
	drainAck chan struct{}

	// subscribeReq carries Subscribe requests into the run loop, so the
	// snapshot read and fan-out enrollment happen on the same goroutine
	// that applies events and broadcasts batches — the only way to make
	// "atomically enroll before returning" (spec.md §4.4 step 3) actually
	// atomic, since Apply and broadcast already happen there.
	subscribeReq chan subscribeRequest

	pullCell     *PullCell
	pullInterval time.Duration
}

// subscribeRequest is how Subscribe asks the run loop to snapshot current
// state and enroll a new subscriber as one indivisible step.
type subscribeRequest struct {
	resp chan *Subscription
}

// New constructs and starts a Recorder for path with the kind's initial
// state, immediately entering the Ready state and launching its run loop.
func New(path, streamType string, kind Kind, initial any, opts Options) *Recorder {
	opts.setDefaults()
	r := &Recorder{
		path:         path,
		streamType:   streamType,
		kind:         kind,
		opts:         opts,
		wake:         make(chan struct{}, 1),
		current:      initial,
		subs:         make(map[uint64]*Subscription),
		state:        Ready,
		refs:         1,
		actions:      make(chan any, 64),
		done:         make(chan struct{}),
		drainAck:     make(chan struct{}),
		subscribeReq: make(chan subscribeRequest),
	}
	go r.run()
	return r
}

// NewPull constructs a Recorder bound to a pull-mode flow's shared state
// cell. Instead of draining a producer event queue, it samples cell on
// every interval tick and publishes a delta whenever the sampled state
// differs from the last one it broadcast (spec.md §4.3 pull mode).
func NewPull(path, streamType string, cell *PullCell, interval time.Duration, opts Options) *Recorder {
	opts.setDefaults()
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	r := &Recorder{
		path:         path,
		streamType:   streamType,
		opts:         opts,
		wake:         make(chan struct{}, 1),
		current:      cell.Snapshot(),
		subs:         make(map[uint64]*Subscription),
		state:        Ready,
		refs:         1,
		actions:      make(chan any, 64),
		done:         make(chan struct{}),
		drainAck:     make(chan struct{}),
		subscribeReq: make(chan subscribeRequest),
		pullCell:     cell,
		pullInterval: interval,
	}
	go r.runPull()
	return r
}

// Path returns the recorder's registered path string.
func (r *Recorder) Path() string { return r.path }

// Kind returns the flow kind this recorder was constructed with (nil for a
// pull-mode recorder built via NewPull). The router uses this to decode
// inbound actions through the kind's ActionKind.DecodeAction before
// forwarding them to PublishAction.
func (r *Recorder) Kind() Kind { return r.kind }

// StreamType returns the flow's wire stream-type tag.
func (r *Recorder) StreamType() string { return r.streamType }

// State returns the recorder's current lifecycle stage.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Retain increments the tracer-clone reference count; the matching Release
// eventually triggers draining once the count reaches zero.
func (r *Recorder) Retain() {
	r.refMu.Lock()
	r.refs++
	r.refMu.Unlock()
}

// Release decrements the tracer-clone reference count. The last release
// begins the Draining sequence (spec.md §5 "dropping all tracer clones
// drains and terminates the recorder").
func (r *Recorder) Release() {
	r.refMu.Lock()
	r.refs--
	remaining := r.refs
	r.refMu.Unlock()
	if remaining <= 0 {
		r.beginDrain()
	}
}

// Send enqueues an event for the run loop to apply; it never blocks (spec
// §4.3's non-blocking send contract).
func (r *Recorder) Send(evt TimedEvent) {
	r.mu.Lock()
	if r.state == Draining || r.state == Terminated {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, evt)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// PublishAction hands an inbound subscriber action to the run loop, which
// forwards it to the tracer's action broadcast. Dropped (no listener)
// actions are logged, per spec §4.4.
func (r *Recorder) PublishAction(action any) {
	select {
	case r.actions <- action:
	default:
		r.opts.Logger.Warn("dropped action: no listener", logging.String("path", r.path))
	}
}

// Actions returns the channel a tracer drains to receive forwarded
// subscriber actions.
func (r *Recorder) Actions() <-chan any { return r.actions }

// OnActiveChange registers a callback invoked whenever the active flag
// flips (first subscriber attaches / last subscriber detaches).
func (r *Recorder) OnActiveChange(fn func(bool)) {
	r.activeMu.Lock()
	r.onActive = fn
	r.activeMu.Unlock()
}

// IsActive reports whether at least one subscriber is currently attached.
func (r *Recorder) IsActive() bool {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()
	return r.active
}

// Subscribe captures a consistent snapshot of State and atomically enrolls
// the caller into delta fan-out before returning, per spec §4.4's
// subscribe contract. The snapshot read and the enrollment are performed by
// the run loop itself (the only goroutine that ever calls kind.Apply or
// broadcasts a batch), so no event can be applied-but-not-yet-broadcast in
// the gap between them: a producer event either lands entirely before this
// subscriber's snapshot (and is therefore not redelivered as a delta), or
// entirely after (and is delivered as a delta, having never been in the
// snapshot). Concurrent Sends still never block on this.
func (r *Recorder) Subscribe() *Subscription {
	req := subscribeRequest{resp: make(chan *Subscription, 1)}
	select {
	case r.subscribeReq <- req:
	case <-r.done:
		return r.closedSubscription()
	}
	select {
	case sub := <-req.resp:
		return sub
	case <-r.done:
		return r.closedSubscription()
	}
}

// enroll is called only from the run/runPull goroutine: it adds a new
// subscriber holding snapshot and flips active if this is the first one.
func (r *Recorder) enroll(snapshot any) *Subscription {
	sub := &Subscription{
		ch:      make(chan Batch, r.opts.SubscriberBufferSize),
		dropped: make(chan struct{}),
	}
	sub.recorder = r
	sub.Snapshot = snapshot
	sub.Updates = sub.ch
	sub.Dropped = sub.dropped

	r.subMu.Lock()
	r.nextSub++
	sub.ID = r.nextSub
	r.subs[sub.ID] = sub
	count := len(r.subs)
	r.subMu.Unlock()

	r.setActive(count > 0)
	return sub
}

// closedSubscription is handed back to a Subscribe call that loses the race
// against the recorder terminating: an already-closed, empty subscription
// rather than blocking forever on a run loop that will never read its
// request.
func (r *Recorder) closedSubscription() *Subscription {
	r.mu.Lock()
	snapshot := r.current
	r.mu.Unlock()

	ch := make(chan Batch)
	close(ch)
	return &Subscription{
		Snapshot: snapshot,
		Updates:  ch,
		Dropped:  make(chan struct{}),
	}
}

func (r *Recorder) unsubscribe(id uint64) {
	r.subMu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	count := len(r.subs)
	r.subMu.Unlock()
	if ok {
		close(sub.ch)
	}
	r.setActive(count > 0)
}

func (r *Recorder) setActive(active bool) {
	r.activeMu.Lock()
	changed := r.active != active
	r.active = active
	cb := r.onActive
	r.activeMu.Unlock()

	if changed {
		// Reflect the Ready<->Broadcasting edge of spec.md §4.4's state
		// machine; Draining/Terminated are only ever entered from
		// beginDrain/terminate and must never be overwritten here.
		r.mu.Lock()
		switch {
		case active && r.state == Ready:
			r.state = Broadcasting
		case !active && r.state == Broadcasting:
			r.state = Ready
		}
		r.mu.Unlock()
	}

	if changed && cb != nil {
		cb(active)
	}
}

func (r *Recorder) beginDrain() {
	r.mu.Lock()
	if r.state == Draining || r.state == Terminated {
		r.mu.Unlock()
		return
	}
	r.state = Draining
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	<-r.drainAck
}

// run is the recorder's single consumer goroutine: it owns State and is
// the only goroutine ever calling kind.Apply, so Apply never races even
// though Send is called from arbitrary producer goroutines.
func (r *Recorder) run() {
	var timer *time.Timer
	var timerC <-chan time.Time
	pending := 0
	var batch []TimedEvent

	flush := func() {
		if len(batch) == 0 {
			return
		}
		out := Batch{Events: batch}
		batch = nil
		pending = 0
		r.broadcast(out)
	}

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	// handleSubscribe flushes any pending (applied-but-not-yet-broadcast)
	// batch first, so r.current exactly matches what every existing
	// subscriber has already been sent, then enrolls the new subscriber
	// with that state as its snapshot. Flushing before enrolling (rather
	// than after) is what keeps this race-free: if it enrolled first, the
	// subsequent flush would redeliver the just-snapshotted events to the
	// new subscriber as a duplicate delta.
	handleSubscribe := func(req subscribeRequest) {
		stopTimer()
		flush()
		r.mu.Lock()
		snapshot := r.current
		r.mu.Unlock()
		req.resp <- r.enroll(snapshot)
	}

	for {
		r.mu.Lock()
		var evt TimedEvent
		has := false
		if len(r.queue) > 0 {
			evt = r.queue[0]
			r.queue = r.queue[1:]
			has = true
		}
		draining := r.state == Draining && len(r.queue) == 0
		r.mu.Unlock()

		if has {
			r.mu.Lock()
			r.current = r.kind.Apply(r.current, evt)
			r.mu.Unlock()

			batch = append(batch, evt)
			pending++
			if pending >= r.opts.CoalesceBatch {
				stopTimer()
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.opts.CoalesceWindow)
				timerC = timer.C
			}
			continue
		}

		if draining {
			stopTimer()
			flush()
			r.terminate()
			return
		}

		select {
		case <-r.wake:
		case <-timerC:
			stopTimer()
			flush()
		case req := <-r.subscribeReq:
			handleSubscribe(req)
		}
	}
}

// runPull is the sampling counterpart of run, for recorders constructed
// with NewPull. It never reads r.queue; draining is signaled the same way
// (beginDrain flips r.state and nudges r.wake) but is observed on the next
// tick or wake, whichever comes first.
func (r *Recorder) runPull() {
	ticker := time.NewTicker(r.pullInterval)
	defer ticker.Stop()

	sample := func() {
		next := r.pullCell.Snapshot()
		r.mu.Lock()
		changed := !reflect.DeepEqual(next, r.current)
		r.current = next
		r.mu.Unlock()
		if !changed {
			return
		}
		r.broadcast(Batch{Events: []TimedEvent{{Timestamp: time.Now().UnixMicro(), Event: next}}})
	}

	// handleSubscribe re-samples first so any not-yet-broadcast change is
	// flushed to existing subscribers before this one enrolls, for the same
	// reason run's handleSubscribe flushes its coalescing batch first.
	handleSubscribe := func(req subscribeRequest) {
		sample()
		r.mu.Lock()
		snapshot := r.current
		r.mu.Unlock()
		req.resp <- r.enroll(snapshot)
	}

	for {
		r.mu.Lock()
		draining := r.state == Draining
		r.mu.Unlock()
		if draining {
			sample()
			r.terminate()
			return
		}

		select {
		case <-ticker.C:
			sample()
		case <-r.wake:
		case req := <-r.subscribeReq:
			handleSubscribe(req)
		}
	}
}

func (r *Recorder) broadcast(b Batch) {
	r.subMu.Lock()
	targets := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		targets = append(targets, sub)
	}
	r.subMu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- b:
		default:
			// Backpressure overflow: drop the subscriber rather than
			// block the rest of the fan-out (spec §4.4 / §7).
			r.unsubscribe(sub.ID)
			sub.markDropped()
		}
	}
}

func (r *Recorder) terminate() {
	r.subMu.Lock()
	for id, sub := range r.subs {
		close(sub.ch)
		delete(r.subs, id)
	}
	r.subMu.Unlock()

	r.mu.Lock()
	r.state = Terminated
	r.mu.Unlock()
	r.setActive(false)
	close(r.drainAck)
	close(r.done)
}

// Done is closed once the recorder reaches Terminated.
func (r *Recorder) Done() <-chan struct{} { return r.done }
