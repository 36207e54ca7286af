package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowbus/internal/logging"
	"flowbus/internal/metrics"
	"flowbus/internal/networking"
)

type stubReadiness struct {
	providers int
	clients   int
	uptime    time.Duration
	err       error
}

func (s *stubReadiness) SnapshotSessionCounts() (int, int) { return s.providers, s.clients }
func (s *stubReadiness) StartupError() error               { return s.err }
func (s *stubReadiness) Uptime() time.Duration             { return s.uptime }

func TestLivenessHandlerReturnsJSON(t *testing.T) {
	fixed := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), TimeSource: func() time.Time { return fixed }})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)

	handlers.LivenessHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "alive" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.Timestamp != fixed.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp %q", payload.Timestamp)
	}
}

func TestReadinessHandlerUnavailable(t *testing.T) {
	readiness := &stubReadiness{providers: 3, clients: 1, uptime: 45 * time.Second, err: errors.New("boom")}
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), Readiness: readiness})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	handlers.ReadinessHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var payload struct {
		Status           string  `json:"status"`
		Message          string  `json:"message"`
		UptimeSeconds    float64 `json:"uptime_seconds"`
		ProviderSessions int     `json:"provider_sessions"`
		ClientSessions   int     `json:"client_sessions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "error" || payload.Message != "boom" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.ProviderSessions != 3 || payload.ClientSessions != 1 {
		t.Fatalf("unexpected session counts: %+v", payload)
	}
	if payload.UptimeSeconds != readiness.uptime.Seconds() {
		t.Fatalf("unexpected uptime: got %f want %f", payload.UptimeSeconds, readiness.uptime.Seconds())
	}
}

func TestMetricsHandlerServesPrometheusRegistry(t *testing.T) {
	m := metrics.New()
	m.FlowsRegistered.Set(3)
	m.EventsApplied.WithLabelValues("counter").Add(5)

	current := time.Unix(0, 0)
	clock := func() time.Time { return current }
	bandwidth := networking.NewBandwidthRegulator(100, clock)
	bandwidth.Allow("sub-1", 50)

	handlers := NewHandlerSet(Options{
		Logger:    logging.NewTestLogger(),
		Metrics:   m,
		Bandwidth: bandwidth,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handlers.MetricsHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, substr := range []string{
		"flowbus_flows_registered 3",
		`flowbus_events_applied_total{stream_type="counter"} 5`,
	} {
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics missing %q:\n%s", substr, body)
		}
	}
}

func TestMetricsHandlerUnavailableWithoutRegistry(t *testing.T) {
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger()})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handlers.MetricsHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
