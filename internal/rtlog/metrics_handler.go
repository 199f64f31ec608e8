package rtlog

import "github.com/prometheus/client_golang/prometheus"

// MetricsHandler bridges METRIC-level records into Prometheus gauges,
// keyed by record Name (e.g. a node id or flow id). It never reports
// anything other than METRIC records — ordinary severities pass
// through it untouched, which lets it sit alongside a LogrusHandler
// in the same Logger.
type MetricsHandler struct {
	gauge *prometheus.GaugeVec
}

// NewMetricsHandler registers a gauge vector labelled by type/name on
// reg and returns a Handler whose gauge is updated only through Set;
// records passed to Handle are ignored.
func NewMetricsHandler(reg prometheus.Registerer, namespace string) *MetricsHandler {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "node_metric",
		Help:      "Last reported METRIC-level value per node/flow.",
	}, []string{"type", "name"})
	if reg != nil {
		reg.MustRegister(gauge)
	}
	return &MetricsHandler{gauge: gauge}
}

func (m *MetricsHandler) Level() Level    { return Off }
func (m *MetricsHandler) MetricsOn() bool { return true }
func (m *MetricsHandler) AuditOn() bool   { return false }

// Handle satisfies Handler but is a no-op: METRIC records carry a
// free-text Msg, not a value, so gauge updates go through Set instead.
// Handle still has to exist so MetricsHandler can sit in the same
// Logger.handlers slice as the text sinks.
func (m *MetricsHandler) Handle(r Record) {}

// Set reports a numeric reading (queue depth, processed count, hook
// halt count) for a given type/name pair.
func (m *MetricsHandler) Set(typ, name string, value float64) {
	m.gauge.WithLabelValues(typ, name).Set(value)
}
