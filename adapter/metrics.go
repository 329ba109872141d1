package adapter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/metric"
)

// adapterMetrics holds the adapter's Prometheus instruments. A nil receiver
// disables recording, so the adapter runs unchanged without a registry.
type adapterMetrics struct {
	received         *prometheus.CounterVec
	sent             *prometheus.CounterVec
	validationErrors prometheus.Counter
	activeSessions   prometheus.Gauge
	evictions        prometheus.Counter
	batchSize        prometheus.Histogram
}

func newAdapterMetrics(registry *metric.Registry) (*adapterMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &adapterMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_messages_received_total",
			Help: "Inbound protocol messages by kind",
		}, []string{"kind"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adapter_messages_sent_total",
			Help: "Outbound protocol messages by kind",
		}, []string{"kind"}),
		validationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adapter_validation_errors_total",
			Help: "Messages rejected by the schema validator",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adapter_active_sessions",
			Help: "Currently registered party sessions",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adapter_sessions_evicted_total",
			Help: "Sessions removed by the idle-timeout sweep",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adapter_indication_batch_size",
			Help:    "Detections per flushed indication report",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"messages_received_total": m.received,
		"messages_sent_total":     m.sent,
		"validation_errors_total": m.validationErrors,
		"active_sessions":         m.activeSessions,
		"sessions_evicted_total":  m.evictions,
		"indication_batch_size":   m.batchSize,
	} {
		if err := registry.Register(name, c); err != nil {
			return nil, errors.Wrap(err, "Adapter", "newAdapterMetrics", "metric registration")
		}
	}
	return m, nil
}

func (m *adapterMetrics) recordReceived(kind string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(kind).Inc()
}

func (m *adapterMetrics) recordSent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

func (m *adapterMetrics) recordValidationError() {
	if m == nil {
		return
	}
	m.validationErrors.Inc()
}

func (m *adapterMetrics) recordSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *adapterMetrics) recordEvictions(n int) {
	if m == nil {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *adapterMetrics) recordBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}
