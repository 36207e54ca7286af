// Package flowbus is an embedded telemetry and live-dashboard bus: a host
// process links this package to expose named flows (Counter, Gauge, Pulse,
// Board, and the interactive widgets Click/Switch/Slider/Selector) and
// Start spins up a colocated server that relays flow state to browser
// dashboards over a persistent websocket transport.
package flowbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"flowbus/internal/clientsession"
	"flowbus/internal/config"
	httpapi "flowbus/internal/http"
	"flowbus/internal/logging"
	"flowbus/internal/metrics"
	"flowbus/internal/providersession"
	"flowbus/internal/recorder"
	"flowbus/internal/registry"
	"flowbus/internal/router"
	"flowbus/internal/wire"
)

// Handle is the RAII-style object Start returns: Close tears the node down
// in the declared order (spec.md §5 "Tuning → Provider → Embedded node"),
// detaching sessions before closing the listener.
type Handle struct {
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *metrics.Metrics
	registry *registry.Registry
	router   *router.Router

	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	provider *providersession.Session

	mu             sync.Mutex
	clientSessions map[*clientsession.Session]struct{}
	nextClientID   uint64

	startTime  time.Time
	startupErr error

	closeOnce sync.Once
	closed    chan struct{}
}

// Start spins up the registry's process-wide singleton (already active via
// package init) and either an embedded dashboard-facing server (the
// default, when Config.Node is empty) or a connection out to an external
// flowbus node that this process's flows are mirrored to. Its Close method
// performs orderly shutdown.
func Start(cfg *config.Config) (*Handle, error) {
	if cfg == nil {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return nil, fmt.Errorf("flowbus: load config: %w", err)
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("flowbus: init logging: %w", err)
	}
	logging.ReplaceGlobals(logger)

	configureRecorderOptions(recorder.Options{
		CoalesceWindow:       cfg.CoalesceWindow,
		CoalesceBatch:        cfg.CoalesceBatch,
		SubscriberBufferSize: cfg.SubscriberBufferSize,
		Logger:               logger,
	})

	reg := registry.Default()
	m := metrics.New()
	rt := router.New(reg, logger)

	h := &Handle{
		cfg:            cfg,
		logger:         logger,
		metrics:        m,
		registry:       reg,
		router:         rt,
		upgrader:       websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins)},
		clientSessions: make(map[*clientsession.Session]struct{}),
		startTime:      time.Now(),
		closed:         make(chan struct{}),
	}

	if cfg.Node != "" {
		if err := h.dialProvider(); err != nil {
			return nil, fmt.Errorf("flowbus: attach to node %q: %w", cfg.Node, err)
		}
		return h, nil
	}

	if err := h.startEmbedded(); err != nil {
		return nil, err
	}
	return h, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Handle) startEmbedded() error {
	listener, err := net.Listen("tcp", h.cfg.Bind)
	if err != nil {
		h.startupErr = err
		return fmt.Errorf("flowbus: listen on %q: %w", h.cfg.Bind, err)
	}
	h.listener = listener

	mux := http.NewServeMux()
	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:    h.logger,
		Readiness: h,
		Metrics:   h.metrics,
	})
	handlers.Register(mux)
	mux.HandleFunc("/ws", h.handleClientWS)

	h.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := h.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http server exited", logging.Error(err))
		}
	}()

	go h.broadcastCatalogUpdates()
	return nil
}

func (h *Handle) dialProvider() error {
	url := fmt.Sprintf("ws://%s/provider", h.cfg.Node)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		h.startupErr = err
		return err
	}
	h.provider = providersession.New(conn, h.registry, providersession.Options{
		EntryID:         h.cfg.AppName,
		MaxPayloadBytes: h.cfg.MaxPayloadBytes,
		PingInterval:    h.cfg.PingInterval,
		Logger:          h.logger,
	})
	go h.provider.Run()
	return nil
}

func (h *Handle) handleClientWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	id := fmt.Sprintf("client-%d", atomic.AddUint64(&h.nextClientID, 1))
	session := clientsession.New(id, conn, h.router, clientsession.Options{
		MaxPayloadBytes: h.cfg.MaxPayloadBytes,
		PingInterval:    h.cfg.PingInterval,
		Logger:          h.logger,
	})

	h.mu.Lock()
	h.clientSessions[session] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientSessions.Inc()

	session.Run()

	h.mu.Lock()
	delete(h.clientSessions, session)
	h.mu.Unlock()
	h.metrics.ClientSessions.Dec()
}

// broadcastCatalogUpdates relays newly registered flow descriptions to
// every currently connected client session (spec.md §4.5), so dashboards
// learn of new flows without polling Describe.
func (h *Handle) broadcastCatalogUpdates() {
	for desc := range h.registry.Declared() {
		h.metrics.FlowsRegistered.Inc()
		msg := wire.Message{
			Type: wire.MessageCatalogUpdate,
			CatalogUpdate: &wire.CatalogUpdateMsg{Description: wire.DescriptionMsg{
				Path: desc.Path, Info: desc.Info, StreamType: desc.StreamType,
			}},
		}
		h.mu.Lock()
		sessions := make([]*clientsession.Session, 0, len(h.clientSessions))
		for s := range h.clientSessions {
			sessions = append(sessions, s)
		}
		h.mu.Unlock()
		for _, s := range sessions {
			_ = s.Send(msg)
		}
		select {
		case <-h.closed:
			return
		default:
		}
	}
}

// SnapshotSessionCounts implements httpapi.ReadinessProvider.
func (h *Handle) SnapshotSessionCounts() (providerSessions, clientSessions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.provider != nil {
		providerSessions = 1
	}
	return providerSessions, len(h.clientSessions)
}

// StartupError implements httpapi.ReadinessProvider.
func (h *Handle) StartupError() error { return h.startupErr }

// Uptime implements httpapi.ReadinessProvider.
func (h *Handle) Uptime() time.Duration { return time.Since(h.startTime) }

// Close shuts the node down in the declared termination order (spec.md
// §5): detach the provider connection (if any), then stop accepting new
// dashboard connections and close every live one, then close the listener.
// Idempotent.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)

		if h.provider != nil {
			err = errors.Join(err, h.provider.Close())
		}

		h.mu.Lock()
		sessions := make([]*clientsession.Session, 0, len(h.clientSessions))
		for s := range h.clientSessions {
			sessions = append(sessions, s)
		}
		h.mu.Unlock()
		for _, s := range sessions {
			err = errors.Join(err, s.Close())
		}

		if h.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = errors.Join(err, h.httpServer.Shutdown(ctx))
		}
		if h.listener != nil {
			_ = h.listener.Close()
		}
		err = errors.Join(err, h.logger.Sync())
	})
	return err
}
