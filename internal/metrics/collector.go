package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rickgao/fleetwatch/internal/connection"
	"github.com/rickgao/fleetwatch/internal/events"
	"github.com/rickgao/fleetwatch/internal/model"
)

const (
	namespace = "fleetwatch"
	subsystem = "channel"
)

var allStates = []connection.State{
	connection.StateDisconnected,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateReconnecting,
	connection.StateError,
}

// otherEvent labels frame types outside knownEvents.
const otherEvent = "other"

// knownEvents bounds the event label: manager events plus modelled frames.
var knownEvents = func() map[string]bool {
	known := map[string]bool{
		connection.EventConnected.Name():       true,
		connection.EventDisconnected.Name():    true,
		connection.EventError.Name():           true,
		connection.EventStateChange.Name():     true,
		connection.EventReconnecting.Name():    true,
		connection.EventReconnectFailed.Name(): true,
	}
	for _, t := range model.Types {
		known[t] = true
	}
	return known
}()

// eventLabel maps server-chosen frame types onto a bounded label set.
func eventLabel(name string) string {
	if knownEvents[name] {
		return name
	}
	return otherEvent
}

// Source exposes manager statistics for gauges evaluated at scrape time.
type Source interface {
	Stats() connection.ManagerStats
}

// Collector records channel metrics. It is a connection.StatusReporter and
// subscribes to a dispatcher with Attach.
type Collector struct {
	// State is 1 for the current state and 0 for the others.
	State *prometheus.GaugeVec

	// Transitions counts state transitions. Labels: from, to
	Transitions *prometheus.CounterVec

	// Events counts dispatched events. Labels: event (unknown frame types
	// are counted as "other")
	Events *prometheus.CounterVec

	// Disconnects counts closes. Labels: reason (manual, auth_rejected, unexpected)
	Disconnects *prometheus.CounterVec

	// ReconnectAttempts counts scheduled retries.
	ReconnectAttempts prometheus.Counter

	// ReconnectFailures counts give-ups after the attempt ceiling.
	ReconnectFailures prometheus.Counter
}

// NewCollector creates and registers the collector on reg. When src is
// non-nil, queue gauges read from it at scrape time.
func NewCollector(reg prometheus.Registerer, src Source) *Collector {
	f := promauto.With(reg)

	c := &Collector{
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "Current channel state (1 for the active state).",
		}, []string{"state"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Channel state transitions.",
		}, []string{"from", "to"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Events dispatched by the connection manager.",
		}, []string{"event"}),
		Disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "disconnects_total",
			Help:      "Channel closes by reason.",
		}, []string{"reason"}),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled.",
		}),
		ReconnectFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnect_failures_total",
			Help:      "Times the manager gave up after exhausting reconnect attempts.",
		}),
	}

	for _, s := range allStates {
		c.State.WithLabelValues(s.String()).Set(0)
	}
	c.State.WithLabelValues(connection.StateDisconnected.String()).Set(1)

	if src != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Envelopes waiting for the channel to open.",
		}, func() float64 { return float64(src.Stats().Queued) })
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_dropped_total",
			Help:      "Envelopes evicted from a full outbound queue.",
		}, func() float64 { return float64(src.Stats().QueueDropped) })
	}

	return c
}

// ReportStatus implements connection.StatusReporter.
func (c *Collector) ReportStatus(u connection.StatusUpdate) {
	c.State.WithLabelValues(u.From.String()).Set(0)
	c.State.WithLabelValues(u.To.String()).Set(1)
	c.Transitions.WithLabelValues(u.From.String(), u.To.String()).Inc()
}

// Attach subscribes the collector to every event on d.
func (c *Collector) Attach(d *events.Dispatcher) events.Subscription {
	return d.OnAny(c.observe)
}

func (c *Collector) observe(ev events.Event) {
	c.Events.WithLabelValues(eventLabel(ev.Name)).Inc()

	switch p := ev.Payload.(type) {
	case connection.DisconnectedEvent:
		c.Disconnects.WithLabelValues(p.Tag.String()).Inc()
	case connection.ReconnectingEvent:
		c.ReconnectAttempts.Inc()
	case connection.ReconnectFailedEvent:
		c.ReconnectFailures.Inc()
	}
}
