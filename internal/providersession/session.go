// Package providersession implements the provider half of spec.md §4.6:
// the endpoint this process's embedded flows are exposed through when a
// remote flowbus node is configured (Config.Node) instead of this process
// serving dashboards itself directly out of the local registry. It maps the remote node's externally-assigned request
// ids to local recorder.Subscriptions and forwards ServerToProvider
// control messages (Describe, ControlStream, Action) into the local
// registry, mirroring the bidirectional pump clientsession.Session runs
// for browser-facing connections.
package providersession

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flowbus/internal/logging"
	"flowbus/internal/recorder"
	"flowbus/internal/registry"
	"flowbus/internal/wire"
)

const (
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 3
)

// Options configures a Session's identity and transport limits.
type Options struct {
	EntryID         string
	MaxPayloadBytes int64
	PingInterval    time.Duration
	Logger          *logging.Logger
}

// Session owns one connection to a remote flowbus node, declaring this
// process's entry id and mirroring its local registry's catalog and flow
// data across the wire.
type Session struct {
	conn     *websocket.Conn
	registry *registry.Registry
	entryID  string
	logger   *logging.Logger

	maxPayloadBytes int64
	pingInterval    time.Duration

	send chan []byte

	mu   sync.Mutex
	subs map[uint64]*recorder.Subscription
}

// New wraps conn as a provider Session mirroring reg to the remote node.
func New(conn *websocket.Conn, reg *registry.Registry, opts Options) *Session {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	return &Session{
		conn:            conn,
		registry:        reg,
		entryID:         opts.EntryID,
		logger:          opts.Logger.With(logging.String("entry_id", opts.EntryID)),
		maxPayloadBytes: opts.MaxPayloadBytes,
		pingInterval:    opts.PingInterval,
		send:            make(chan []byte, 256),
		subs:            make(map[uint64]*recorder.Subscription),
	}
}

// Close forcibly tears down the underlying connection, causing Run's read
// loop to error out and unwind the session normally.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Send enqueues msg for delivery to the remote node.
func (s *Session) Send(msg wire.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.send <- raw:
		return nil
	default:
		return errClosed
	}
}

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "providersession: send queue full" }

// Run drives the session until the connection closes: it declares this
// entry, pushes the current catalog, then processes inbound control
// messages and outbound declared-path notifications until either side
// closes the transport. It blocks until both goroutines it spawns exit.
func (s *Session) Run() {
	if s.maxPayloadBytes > 0 {
		s.conn.SetReadLimit(s.maxPayloadBytes)
	}
	waitDuration := time.Duration(pongWaitMultiplier) * s.pingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(waitDuration))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	_ = s.Send(wire.Message{Type: wire.MessageDeclare, Declare: &wire.DeclareMsg{Entry: s.entryID}})
	s.sendCatalog()

	declareDone := make(chan struct{})
	go s.watchDeclared(declareDone)

	writerDone := make(chan struct{})
	go s.writeLoop(writerDone, waitDuration)
	s.readLoop(waitDuration)
	close(s.send)
	<-writerDone
	<-declareDone

	s.closeAllSubs()
	_ = s.conn.Close()
}

func (s *Session) sendCatalog() {
	entries := s.registry.Catalog()
	descs := make([]wire.DescriptionMsg, 0, len(entries))
	for _, e := range entries {
		descs = append(descs, wire.DescriptionMsg{Path: e.Path, Info: e.Info, StreamType: e.StreamType})
	}
	for _, d := range descs {
		_ = s.Send(wire.Message{Type: wire.MessageDescription, Description: &d})
	}
}

// watchDeclared pushes incremental Description messages as new paths are
// registered locally, so the remote node learns of them without polling
// (spec.md §4.5). It stops once the session's outbound queue is closed.
func (s *Session) watchDeclared(done chan<- struct{}) {
	defer close(done)
	for desc := range s.registry.Declared() {
		if err := s.Send(wire.Message{
			Type:        wire.MessageDescription,
			Description: &wire.DescriptionMsg{Path: desc.Path, Info: desc.Info, StreamType: desc.StreamType},
		}); err != nil {
			return
		}
	}
}

func (s *Session) readLoop(waitDuration time.Duration) {
	for {
		messageType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Warn("read deadline exceeded", logging.Error(err))
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("unexpected websocket close", logging.Error(err))
			} else {
				s.logger.Debug("read loop ending", logging.Error(err))
			}
			return
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			s.logger.Error("failed to extend read deadline", logging.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var in wire.Message
		if err := json.Unmarshal(msg, &in); err != nil {
			s.logger.Debug("dropping invalid JSON message", logging.Error(err))
			continue
		}
		s.dispatch(in)
	}
}

func (s *Session) dispatch(msg wire.Message) {
	switch msg.Type {
	case wire.MessageDescribe:
		s.sendCatalog()
	case wire.MessageControlStream:
		if msg.ControlStream == nil {
			return
		}
		if msg.ControlStream.Subscribe {
			s.subscribe(msg.ControlStream.RequestID, msg.ControlStream.Path)
		} else {
			s.unsubscribe(msg.ControlStream.RequestID)
		}
	case wire.MessageAction:
		if msg.Action == nil {
			return
		}
		s.publishAction(msg.Action.Path, msg.Action.Payload)
	default:
		s.logger.Debug("dropping unhandled message type", logging.String("type", string(msg.Type)))
	}
}

func (s *Session) subscribe(requestID uint64, path string) {
	entry, ok := s.registry.Lookup(path)
	if !ok {
		_ = s.Send(wire.Message{Type: wire.MessageEndStream, EndStream: &wire.EndStreamMsg{RequestID: requestID, Reason: "unknown path"}})
		return
	}

	sub := entry.Recorder.Subscribe()

	s.mu.Lock()
	s.subs[requestID] = sub
	s.mu.Unlock()

	snapshot, err := json.Marshal(sub.Snapshot)
	if err != nil {
		sub.Close()
		s.mu.Lock()
		delete(s.subs, requestID)
		s.mu.Unlock()
		_ = s.Send(wire.Message{Type: wire.MessageEndStream, EndStream: &wire.EndStreamMsg{RequestID: requestID, Reason: "marshal snapshot failed"}})
		return
	}
	if err := s.Send(wire.Message{Type: wire.MessageBeginStream, BeginStream: &wire.BeginStreamMsg{RequestID: requestID, Snapshot: snapshot}}); err != nil {
		sub.Close()
		s.mu.Lock()
		delete(s.subs, requestID)
		s.mu.Unlock()
		return
	}

	go s.pump(requestID, sub)
}

func (s *Session) pump(requestID uint64, sub *recorder.Subscription) {
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
					s.logger.Warn("dropping unmarshalable event", logging.Error(err))
					continue
				}
				events = append(events, raw)
			}
			if len(events) == 0 {
				continue
			}
			if err := s.Send(wire.Message{Type: wire.MessageData, Data: &wire.DataMsg{RequestID: requestID, Events: events}}); err != nil {
				reason = "send failed"
				goto end
			}
		case <-sub.Dropped:
			reason = "backpressure overflow"
			goto end
		}
	}
end:
	s.mu.Lock()
	delete(s.subs, requestID)
	s.mu.Unlock()
	_ = s.Send(wire.Message{Type: wire.MessageEndStream, EndStream: &wire.EndStreamMsg{RequestID: requestID, Reason: reason}})
}

func (s *Session) unsubscribe(requestID uint64) {
	s.mu.Lock()
	sub, ok := s.subs[requestID]
	delete(s.subs, requestID)
	s.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (s *Session) publishAction(path string, rawPayload json.RawMessage) {
	entry, ok := s.registry.Lookup(path)
	if !ok {
		s.logger.Warn("action for unknown path", logging.String("path", path))
		return
	}
	var payload any
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		s.logger.Debug("dropping action with invalid payload", logging.Error(err))
		return
	}
	if ak, ok := entry.Recorder.Kind().(recorder.ActionKind); ok {
		decoded, err := ak.DecodeAction(payload)
		if err != nil {
			s.logger.Debug("dropping action: decode failed", logging.String("path", path), logging.Error(err))
			return
		}
		payload = decoded
	}
	entry.Recorder.PublishAction(payload)
}

func (s *Session) closeAllSubs() {
	s.mu.Lock()
	subs := make([]*recorder.Subscription, 0, len(s.subs))
	for id, sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Session) writeLoop(done chan<- struct{}, waitDuration time.Duration) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Error("failed to set write deadline", logging.Error(err))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Error("write error", logging.Error(err))
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("ping failure", logging.Error(err))
				return
			}
		}
	}
}
