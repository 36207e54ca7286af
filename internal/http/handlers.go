package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"flowbus/internal/logging"
	"flowbus/internal/metrics"
	"flowbus/internal/networking"
)

// ReadinessProvider exposes node state required for readiness checks.
type ReadinessProvider interface {
	SnapshotSessionCounts() (providerSessions, clientSessions int)
	StartupError() error
	Uptime() time.Duration
}

// StatsFunc returns cumulative delivery statistics for liveness/readiness
// responses that don't need the full Prometheus surface.
type StatsFunc func() (batchesDelivered, activeSubscribers int)

// Options configures the HandlerSet.
type Options struct {
	Logger    *logging.Logger
	Readiness ReadinessProvider
	Stats     StatsFunc
	Metrics   *metrics.Metrics
	Bandwidth *networking.BandwidthRegulator

	TimeSource func() time.Time
}

// HandlerSet bundles the node's operational HTTP handlers: liveness,
// readiness, and Prometheus metrics. Authentication is intentionally absent
// since the dashboard socket carries no auth layer (spec non-goal).
type HandlerSet struct {
	logger    *logging.Logger
	readiness ReadinessProvider
	stats     StatsFunc
	metrics   *metrics.Metrics
	bandwidth *networking.BandwidthRegulator
	now       func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:    logger,
		readiness: opts.Readiness,
		stats:     opts.Stats,
		metrics:   opts.Metrics,
		bandwidth: opts.Bandwidth,
		now:       now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.Handle("/metrics", h.MetricsHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports node readiness, including session counts and
// startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status           string  `json:"status"`
		Message          string  `json:"message,omitempty"`
		UptimeSeconds    float64 `json:"uptime_seconds"`
		ProviderSessions int     `json:"provider_sessions"`
		ClientSessions   int     `json:"client_sessions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			providers, clients := h.readiness.SnapshotSessionCounts()
			resp.ProviderSessions = providers
			resp.ClientSessions = clients
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler serves the Prometheus text exposition format via the
// shared metrics registry. BandwidthRegulator usage is not part of the
// output, whether or not Options.Bandwidth is set.
func (h *HandlerSet) MetricsHandler() http.Handler {
	if h.metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	if h.bandwidth == nil {
		return h.metrics.Handler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.Handler().ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
