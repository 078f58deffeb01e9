package uvcstream

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline's Prometheus instruments. A nil *Metrics is
// valid everywhere one is accepted; all methods are no-ops on nil.
type Metrics struct {
	framesDelivered  prometheus.Counter
	framesDropped    prometheus.Counter
	conversionErrors prometheus.Counter
	sessionState     prometheus.Gauge
}

// NewMetrics creates pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvcstream_frames_delivered_total",
			Help: "Frames delivered to the registered consumer.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvcstream_frames_dropped_total",
			Help: "Frames dropped (no consumer, conversion failure, or empty input).",
		}),
		conversionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uvcstream_conversion_errors_total",
			Help: "Color-space conversion failures.",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uvcstream_session_state",
			Help: "Current session state (0=idle 1=starting 2=active 3=stopping).",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.framesDelivered, m.framesDropped, m.conversionErrors, m.sessionState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) frameDelivered() {
	if m != nil {
		m.framesDelivered.Inc()
	}
}

func (m *Metrics) frameDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

func (m *Metrics) conversionError() {
	if m != nil {
		m.conversionErrors.Inc()
	}
}

func (m *Metrics) setSessionState(s SessionState) {
	if m != nil {
		m.sessionState.Set(float64(s))
	}
}
