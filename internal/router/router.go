// Package router implements the in-process hub that bridges the path
// registry to attached sessions: it turns a client session's Subscribe
// request into a recorder.Subscription and pumps that subscription's
// snapshot/delta stream back out as wire messages, and it turns an inbound
// widget action into a PublishAction call on the owning recorder. This is
// the Go stand-in for spec.md §4.8's exporter/router responsibilities.
package router

import (
	"encoding/json"
	"fmt"
	"sync"

	"flowbus/internal/logging"
	"flowbus/internal/recorder"
	"flowbus/internal/registry"
	"flowbus/internal/wire"
)

// Outbound is anything the router can push wire messages to: both
// clientsession.Session and providersession.Session implement it.
type Outbound interface {
	Send(msg wire.Message) error
}

// Router owns the live path->subscription mapping for every attached
// session and serializes registry lookups behind a single entry point.
type Router struct {
	registry *registry.Registry
	logger   *logging.Logger

	mu    sync.Mutex
	subs  map[subKey]*recorder.Subscription
	reqID uint64
}

type subKey struct {
	session Outbound
	path    string
}

// New constructs a Router bound to reg.
func New(reg *registry.Registry, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.L()
	}
	return &Router{
		registry: reg,
		logger:   logger,
		subs:     make(map[subKey]*recorder.Subscription),
	}
}

// Catalog returns every currently registered description as wire messages,
// for a freshly attached session's initial catalog push.
func (r *Router) Catalog() []wire.DescriptionMsg {
	entries := r.registry.Catalog()
	out := make([]wire.DescriptionMsg, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.DescriptionMsg{Path: e.Path, Info: e.Info, StreamType: e.StreamType})
	}
	return out
}

// Subscribe attaches session to path, sending BeginStream immediately and
// spawning a pump goroutine that forwards the recorder's delta batches as
// Data messages until the subscription ends.
func (r *Router) Subscribe(session Outbound, path string) error {
	entry, ok := r.registry.Lookup(path)
	if !ok {
		return fmt.Errorf("router: unknown path %q", path)
	}

	r.mu.Lock()
	key := subKey{session: session, path: path}
	if _, exists := r.subs[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("router: already subscribed to %q", path)
	}
	r.reqID++
	reqID := r.reqID
	r.mu.Unlock()

	sub := entry.Recorder.Subscribe()

	r.mu.Lock()
	r.subs[key] = sub
	r.mu.Unlock()

	snapshot, err := json.Marshal(sub.Snapshot)
	if err != nil {
		sub.Close()
		r.mu.Lock()
		delete(r.subs, key)
		r.mu.Unlock()
		return fmt.Errorf("router: marshal snapshot: %w", err)
	}

	if err := session.Send(wire.Message{
		Type:        wire.MessageBeginStream,
		BeginStream: &wire.BeginStreamMsg{RequestID: reqID, Snapshot: snapshot},
	}); err != nil {
		sub.Close()
		r.mu.Lock()
		delete(r.subs, key)
		r.mu.Unlock()
		return err
	}

	go r.pump(session, key, reqID, sub)
	return nil
}

func (r *Router) pump(session Outbound, key subKey, reqID uint64, sub *recorder.Subscription) {
	reason := ""
	for {
		select {
		case batch, ok := <-sub.Updates:
			if !ok {
				goto end
			}
			events := make([]json.RawMessage, 0, len(batch.Events))
			for _, evt := range batch.Events {
				raw, err := json.Marshal(evt.Event)
				if err != nil {
					r.logger.Warn("dropping unmarshalable event", logging.String("path", key.path), logging.Error(err))
					continue
				}
				events = append(events, raw)
			}
			if len(events) == 0 {
				continue
			}
			if err := session.Send(wire.Message{
				Type: wire.MessageData,
				Data: &wire.DataMsg{RequestID: reqID, Events: events},
			}); err != nil {
				reason = "send failed"
				goto end
			}
		case <-sub.Dropped:
			reason = "backpressure overflow"
			goto end
		}
	}
end:
	r.mu.Lock()
	delete(r.subs, key)
	r.mu.Unlock()
	_ = session.Send(wire.Message{
		Type:      wire.MessageEndStream,
		EndStream: &wire.EndStreamMsg{RequestID: reqID, Reason: reason},
	})
}

// Unsubscribe detaches session from path, if it was subscribed.
func (r *Router) Unsubscribe(session Outbound, path string) {
	key := subKey{session: session, path: path}
	r.mu.Lock()
	sub, ok := r.subs[key]
	delete(r.subs, key)
	r.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// UnsubscribeAll detaches every subscription owned by session, called when
// a session disconnects.
func (r *Router) UnsubscribeAll(session Outbound) {
	r.mu.Lock()
	var toClose []*recorder.Subscription
	for key, sub := range r.subs {
		if key.session == session {
			toClose = append(toClose, sub)
			delete(r.subs, key)
		}
	}
	r.mu.Unlock()
	for _, sub := range toClose {
		sub.Close()
	}
}

// PublishAction resolves path to its recorder and forwards an action. When
// the flow's kind implements ActionKind, the raw payload is decoded through
// it first, rejecting it at this session boundary if decoding fails (spec
// §7 error kind 4); kinds that don't implement ActionKind (or a recorder
// constructed without a Kind at all, e.g. test doubles) forward the payload
// unchanged.
func (r *Router) PublishAction(path string, action any) error {
	entry, ok := r.registry.Lookup(path)
	if !ok {
		return fmt.Errorf("router: unknown path %q", path)
	}
	if ak, ok := entry.Recorder.Kind().(recorder.ActionKind); ok {
		decoded, err := ak.DecodeAction(action)
		if err != nil {
			return fmt.Errorf("router: decode action for %q: %w", path, err)
		}
		action = decoded
	}
	entry.Recorder.PublishAction(action)
	return nil
}
