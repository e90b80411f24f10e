package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
)

type staticSource struct {
	stats connection.ManagerStats
}

func (s *staticSource) Stats() connection.ManagerStats { return s.stats }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCollector_ReportStatus(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.State.WithLabelValues("disconnected")))

	c.ReportStatus(connection.StatusUpdate{From: connection.StateDisconnected, To: connection.StateConnecting})
	c.ReportStatus(connection.StatusUpdate{From: connection.StateConnecting, To: connection.StateConnected})

	assert.Equal(t, float64(0), testutil.ToFloat64(c.State.WithLabelValues("disconnected")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.State.WithLabelValues("connecting")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.State.WithLabelValues("connected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Transitions.WithLabelValues("connecting", "connected")))
}

func TestCollector_Events(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), nil)
	d := events.NewDispatcher(nil)
	c.Attach(d)

	events.Publish(d, connection.EventReconnecting, connection.ReconnectingEvent{Attempt: 1, Delay: time.Second})
	events.Publish(d, connection.EventReconnecting, connection.ReconnectingEvent{Attempt: 2, Delay: 2 * time.Second})
	events.Publish(d, connection.EventReconnectFailed, connection.ReconnectFailedEvent{Attempts: 2})
	events.Publish(d, connection.EventDisconnected, connection.DisconnectedEvent{Code: 1008, Tag: connection.CloseAuthRejected})
	events.Publish(d, connection.MessageKey("agent_status_change"), connection.Envelope{Type: "agent_status_change"})

	assert.Equal(t, float64(2), testutil.ToFloat64(c.ReconnectAttempts))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.ReconnectFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Disconnects.WithLabelValues("auth_rejected")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.Events.WithLabelValues("reconnecting")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Events.WithLabelValues("agent_status_change")))
}

func TestCollector_UnknownFrameTypesShareLabel(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry(), nil)
	d := events.NewDispatcher(nil)
	c.Attach(d)

	for _, typ := range []string{"custom_a", "custom_b", "ping", "meeting_event"} {
		events.Publish(d, connection.MessageKey(typ), connection.Envelope{Type: typ})
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(c.Events.WithLabelValues("other")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Events.WithLabelValues("meeting_event")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.Events))
}

func TestCollector_QueueGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := &staticSource{stats: connection.ManagerStats{Queued: 7, QueueDropped: 3}}
	NewCollector(reg, src)

	expected := `
# HELP fleetwatch_channel_queue_depth Envelopes waiting for the channel to open.
# TYPE fleetwatch_channel_queue_depth gauge
fleetwatch_channel_queue_depth 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fleetwatch_channel_queue_depth"))

	src.stats.Queued = 0
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(strings.Replace(expected, " 7\n", " 0\n", 1)), "fleetwatch_channel_queue_depth"))
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		state      connection.State
		db         Pinger
		wantCode   int
		wantStatus string
	}{
		{"connected", connection.StateConnected, nil, http.StatusOK, "healthy"},
		{"reconnecting", connection.StateReconnecting, nil, http.StatusOK, "degraded"},
		{"gave up", connection.StateError, nil, http.StatusServiceUnavailable, "unhealthy"},
		{"db down", connection.StateConnected, pingFunc(func(context.Context) error { return errors.New("refused") }), http.StatusServiceUnavailable, "unhealthy"},
		{"db up", connection.StateConnected, pingFunc(func(context.Context) error { return nil }), http.StatusOK, "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &staticSource{stats: connection.ManagerStats{State: tt.state, Queued: 2}}
			h := NewHealthHandler(src, tt.db, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)

			channel := body.Components["channel"].(map[string]any)
			assert.Equal(t, tt.state.String(), channel["state"])
			assert.Equal(t, float64(2), channel["queued"])
		})
	}
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := &staticSource{stats: connection.ManagerStats{State: connection.StateConnected}}
	NewCollector(reg, src)

	srv := NewServer(0, "/metrics", "/health", reg, NewHealthHandler(src, nil, nil), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "fleetwatch_channel_state")

	resp, err = http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
