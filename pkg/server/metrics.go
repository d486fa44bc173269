package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime WebSocket upgrades
	ActiveConnections atomic.Int64 // current open sockets
	TotalDisconnects  atomic.Int64
	Logins            atomic.Int64
	FailedLogins      atomic.Int64 // logins rejected by validation

	// Command counters
	CommandsHandled  atomic.Int64 // decoded commands, any outcome
	DecodeFailures   atomic.Int64 // frames discarded as undecodable
	UnknownCommands  atomic.Int64
	ValidationErrors atomic.Int64
	Unauthorized     atomic.Int64 // commands from non-members or on unknown groups/codes

	// Delivery counters
	EventsDelivered atomic.Int64 // frames accepted by an outbound queue
	EventsDropped   atomic.Int64 // frames dropped on a full queue
	OfflineSkips    atomic.Int64 // recipients skipped because they were offline

	// Domain counters
	GroupsCreated     atomic.Int64
	AlarmCodesCreated atomic.Int64
	AlarmsTriggered   atomic.Int64
	SignalsRelayed    atomic.Int64
	SignalsDropped    atomic.Int64 // webrtc payloads for offline or backed-up recipients
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	Logins            int64 `json:"logins"`
	FailedLogins      int64 `json:"failed_logins"`

	CommandsHandled  int64 `json:"commands_handled"`
	DecodeFailures   int64 `json:"decode_failures"`
	UnknownCommands  int64 `json:"unknown_commands"`
	ValidationErrors int64 `json:"validation_errors"`
	Unauthorized     int64 `json:"unauthorized"`

	EventsDelivered int64 `json:"events_delivered"`
	EventsDropped   int64 `json:"events_dropped"`
	OfflineSkips    int64 `json:"offline_skips"`

	GroupsCreated     int64 `json:"groups_created"`
	AlarmCodesCreated int64 `json:"alarm_codes_created"`
	AlarmsTriggered   int64 `json:"alarms_triggered"`
	SignalsRelayed    int64 `json:"signals_relayed"`
	SignalsDropped    int64 `json:"signals_dropped"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		Logins:            m.Logins.Load(),
		FailedLogins:      m.FailedLogins.Load(),
		CommandsHandled:   m.CommandsHandled.Load(),
		DecodeFailures:    m.DecodeFailures.Load(),
		UnknownCommands:   m.UnknownCommands.Load(),
		ValidationErrors:  m.ValidationErrors.Load(),
		Unauthorized:      m.Unauthorized.Load(),
		EventsDelivered:   m.EventsDelivered.Load(),
		EventsDropped:     m.EventsDropped.Load(),
		OfflineSkips:      m.OfflineSkips.Load(),
		GroupsCreated:     m.GroupsCreated.Load(),
		AlarmCodesCreated: m.AlarmCodesCreated.Load(),
		AlarmsTriggered:   m.AlarmsTriggered.Load(),
		SignalsRelayed:    m.SignalsRelayed.Load(),
		SignalsDropped:    m.SignalsDropped.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"commands", s.CommandsHandled,
		"events_delivered", s.EventsDelivered,
		"events_dropped", s.EventsDropped,
		"alarms", s.AlarmsTriggered,
		"signals", s.SignalsRelayed,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}

// NewRegistry builds a private Prometheus registry exposing m and the number
// of online users. Collectors read the atomics at scrape time.
func (m *Metrics) NewRegistry(online func() int) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gauge := func(name, help string, v func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: "sosmeet", Name: name, Help: help}, v)
	}
	counter := func(name, help string, c *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: "sosmeet", Name: name, Help: help},
			func() float64 { return float64(c.Load()) })
	}

	reg.MustRegister(
		gauge("uptime_seconds", "Server uptime in seconds.", func() float64 { return time.Since(m.startTime).Seconds() }),
		gauge("connections_active", "Current open WebSocket connections.", func() float64 { return float64(m.ActiveConnections.Load()) }),
		gauge("users_online", "Usernames bound to a live session.", func() float64 { return float64(online()) }),

		counter("connections_total", "Lifetime WebSocket connections accepted.", &m.TotalConnections),
		counter("disconnects_total", "Total client disconnects.", &m.TotalDisconnects),
		counter("logins_total", "Successful logins.", &m.Logins),
		counter("logins_failed_total", "Logins rejected by validation.", &m.FailedLogins),

		counter("commands_total", "Decoded client commands.", &m.CommandsHandled),
		counter("decode_failures_total", "Frames discarded as undecodable.", &m.DecodeFailures),
		counter("unknown_commands_total", "Commands with an unknown type.", &m.UnknownCommands),
		counter("validation_errors_total", "Commands rejected by validation.", &m.ValidationErrors),
		counter("unauthorized_total", "Commands rejected by group authorization.", &m.Unauthorized),

		counter("events_delivered_total", "Events accepted by an outbound queue.", &m.EventsDelivered),
		counter("events_dropped_total", "Events dropped on a full outbound queue.", &m.EventsDropped),
		counter("offline_skips_total", "Recipients skipped because they were offline.", &m.OfflineSkips),

		counter("groups_created_total", "Groups created.", &m.GroupsCreated),
		counter("alarm_codes_created_total", "Alarm codes created.", &m.AlarmCodesCreated),
		counter("alarms_triggered_total", "Alarms triggered.", &m.AlarmsTriggered),
		counter("signals_relayed_total", "WebRTC payloads relayed.", &m.SignalsRelayed),
		counter("signals_dropped_total", "WebRTC payloads dropped.", &m.SignalsDropped),
	)
	return reg
}
