// Package clientsession implements the websocket-facing side of a
// dashboard client: reading Subscribe/Unsubscribe/Action requests and
// writing BeginStream/Data/EndStream/CatalogUpdate responses, following
// the reader/writer goroutine pair the embedded node's original websocket
// handler uses for keepalive and backpressure.
package clientsession

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"flowbus/internal/logging"
	"flowbus/internal/router"
	"flowbus/internal/wire"
)

const (
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 3
)

// Session owns one client's websocket connection: a buffered outbound
// queue drained by a writer goroutine, and an inbound reader goroutine
// translating wire.Message frames into Router calls. It implements
// router.Outbound so the router can address it directly.
type Session struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	router *router.Router
	logger *logging.Logger

	maxPayloadBytes int64
	pingInterval    time.Duration
}

// Options configures a Session's transport limits.
type Options struct {
	MaxPayloadBytes int64
	PingInterval    time.Duration
	Logger          *logging.Logger
}

// New wraps conn as a client Session bound to rt.
func New(id string, conn *websocket.Conn, rt *router.Router, opts Options) *Session {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	return &Session{
		ID:              id,
		conn:            conn,
		send:            make(chan []byte, 256),
		router:          rt,
		logger:          opts.Logger.With(logging.String("client_id", id)),
		maxPayloadBytes: opts.MaxPayloadBytes,
		pingInterval:    opts.PingInterval,
	}
}

// Send enqueues msg for delivery, marshaling it to JSON. Non-blocking: a
// full send queue indicates a wedged connection and is treated as a
// backpressure overflow (the writer loop will already be tearing down).
func (s *Session) Send(msg wire.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.send <- raw:
		return nil
	default:
		return errors.New("clientsession: send queue full")
	}
}

// Close forcibly tears down the underlying connection, causing Run's read
// loop to error out and unwind the session normally (router.UnsubscribeAll
// included). Used by the embedded node's orderly shutdown to close every
// live dashboard connection without waiting for clients to disconnect.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Run drives the session until the connection closes. It blocks until
// both the reader and writer goroutines exit.
func (s *Session) Run() {
	if s.maxPayloadBytes > 0 {
		s.conn.SetReadLimit(s.maxPayloadBytes)
	}

	waitDuration := time.Duration(pongWaitMultiplier) * s.pingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(waitDuration))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	//1.- Push the current catalog so the client can render what exists
	// before issuing any Subscribe requests.
	for _, desc := range s.router.Catalog() {
		_ = s.Send(wire.Message{Type: wire.MessageCatalogUpdate, CatalogUpdate: &wire.CatalogUpdateMsg{Description: desc}})
	}

	writerDone := make(chan struct{})
	go s.writeLoop(writerDone, waitDuration)
	s.readLoop(waitDuration)
	close(s.send)
	<-writerDone

	s.router.UnsubscribeAll(s)
	_ = s.conn.Close()
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

		var msgIn wire.Message
		if err := json.Unmarshal(msg, &msgIn); err != nil {
			s.logger.Debug("dropping invalid JSON message", logging.Error(err))
			continue
		}
		s.dispatch(msgIn)
	}
}

func (s *Session) dispatch(msg wire.Message) {
	switch msg.Type {
	case wire.MessageSubscribe:
		if msg.Subscribe == nil {
			return
		}
		if err := s.router.Subscribe(s, msg.Subscribe.Path); err != nil {
			s.logger.Warn("subscribe failed", logging.String("path", msg.Subscribe.Path), logging.Error(err))
		}
	case wire.MessageUnsubscribe:
		if msg.Unsubscribe == nil {
			return
		}
		s.router.Unsubscribe(s, msg.Unsubscribe.Path)
	case wire.MessageAction:
		if msg.Action == nil {
			return
		}
		var payload any
		if err := json.Unmarshal(msg.Action.Payload, &payload); err != nil {
			s.logger.Debug("dropping action with invalid payload", logging.Error(err))
			return
		}
		if err := s.router.PublishAction(msg.Action.Path, payload); err != nil {
			s.logger.Warn("publish action failed", logging.String("path", msg.Action.Path), logging.Error(err))
		}
	default:
		s.logger.Debug("dropping unhandled message type", logging.String("type", string(msg.Type)))
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
