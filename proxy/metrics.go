package proxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/kpxc/protocol"
)

// Metrics exports engine counters to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests   *prometheus.CounterVec   // requests sent, by action
	Errors     *prometheus.CounterVec   // failed calls, by error kind
	Signals    *prometheus.CounterVec   // signals received, by action
	Malformed  prometheus.Counter       // undecodable inbound frames
	Reconnects prometheus.Counter       // reconnect attempts started
	Latency    *prometheus.HistogramVec // request round trip, by action
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// skips registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpxc",
			Name:      "requests_total",
			Help:      "Encrypted requests sent to KeePassXC.",
		}, []string{"action"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpxc",
			Name:      "errors_total",
			Help:      "Calls that returned an error, by kind.",
		}, []string{"kind"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpxc",
			Name:      "signals_total",
			Help:      "Unsolicited signals received from KeePassXC.",
		}, []string{"action"}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kpxc",
			Name:      "malformed_frames_total",
			Help:      "Inbound frames that could not be decoded.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kpxc",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts started after transport loss.",
		}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kpxc",
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to receiving its response.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"action"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Requests, m.Errors, m.Signals, m.Malformed, m.Reconnects, m.Latency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) request(action protocol.Action) {
	if m != nil {
		m.Requests.WithLabelValues(string(action)).Inc()
	}
}

func (m *Metrics) failure(kind Kind) {
	if m != nil {
		m.Errors.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) signal(action protocol.Action) {
	if m != nil {
		m.Signals.WithLabelValues(string(action)).Inc()
	}
}

func (m *Metrics) malformed() {
	if m != nil {
		m.Malformed.Inc()
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) observe(action protocol.Action, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(string(action)).Observe(d.Seconds())
	}
}
