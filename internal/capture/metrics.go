package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts capture activity. A nil *Metrics records nothing.
type Metrics struct {
	reads    *prometheus.CounterVec
	sessions *prometheus.CounterVec
	focus    prometheus.Counter
}

// NewMetrics registers the capture collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardlink",
			Subsystem: "capture",
			Name:      "bursts_total",
			Help:      "Completed reader bursts by outcome.",
		}, []string{"outcome"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardlink",
			Subsystem: "capture",
			Name:      "sessions_total",
			Help:      "Capture sessions by how they ended.",
		}, []string{"result"}),
		focus: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cardlink",
			Subsystem: "capture",
			Name:      "focus_reclaims_total",
			Help:      "Times the capture field had to be refocused.",
		}),
	}
}

func (m *Metrics) burst(o Outcome) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) session(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
}

func (m *Metrics) reclaim() {
	if m == nil {
		return
	}
	m.focus.Inc()
}
