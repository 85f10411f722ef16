package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "combinelock"
	subsystem = "ledger"

	labelResult = "result"

	resultAccepted = "accepted"
	resultRejected = "rejected"
)

// metrics are the collectors of one ledger.
type metrics struct {
	verified  *prometheus.CounterVec
	verifyDur prometheus.Histogram
	liveCells prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		verified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verified_tx_total",
				Help:      "Total number of verified transactions by result.",
			},
			[]string{labelResult},
		),
		verifyDur: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verify_seconds",
				Help:      "Histogram of transaction script verification latency.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		liveCells: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "live_cells",
				Help:      "Number of live cells in the store.",
			},
		),
	}
}

// Collectors returns the metric collectors of the ledger, for registration
// with a prometheus registry.
func (l *Ledger) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		l.metrics.verified,
		l.metrics.verifyDur,
		l.metrics.liveCells,
	}
}
