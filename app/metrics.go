package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects guardian statistics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	batches      prometheus.Counter
	txs          *prometheus.CounterVec
	instructions *prometheus.CounterVec
	height       prometheus.Gauge
}

// NewMetrics creates guardian metrics labeled with the guardian name and
// registers them with reg, unless reg is nil.
func NewMetrics(reg prometheus.Registerer, guardian string) *Metrics {
	labels := prometheus.Labels{"guardian": guardian}
	m := &Metrics{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fedescrow_batches_total",
			Help:        "Number of applied batches.",
			ConstLabels: labels,
		}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fedescrow_txs_total",
			Help:        "Number of processed transactions by verdict.",
			ConstLabels: labels,
		}, []string{"verdict"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fedescrow_instructions_total",
			Help:        "Number of processed module inputs and outputs.",
			ConstLabels: labels,
		}, []string{"module", "kind", "verdict"}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fedescrow_batch_height",
			Help:        "Height of the last applied batch.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.batches, m.txs, m.instructions, m.height)
	}
	return m
}

func verdictLabel(err error) string {
	if err != nil {
		return StatusRejected
	}
	return StatusAccepted
}

func (m *Metrics) observeBatch(height int64) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.height.Set(float64(height))
}
