package kiosk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts kiosk reads. A nil *Metrics records nothing.
type Metrics struct {
	reads *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		reads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardlink",
			Subsystem: "kiosk",
			Name:      "reads_total",
			Help:      "Access kiosk card reads by result.",
		}, []string{"status"}),
	}
}

func (m *Metrics) read(s Status) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(s.String()).Inc()
}
