// Package rtmetrics is the runtime's small ambient counter set:
// messages routed, hook halts, and deploy duration. It is pure
// observability, so it sits alongside the runtime core rather than
// inside it — callers take an optional *Metrics and call into it, and
// nothing here is load-bearing for correctness.
package rtmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the runtime's Prometheus collectors. Deploys and hook
// halts update them; nothing in node message delivery calls
// RouteObserved, so MessagesRouted stays at zero unless a caller does.
type Metrics struct {
	MessagesRouted *prometheus.CounterVec
	HookHalts      *prometheus.CounterVec
	DeployDuration prometheus.Histogram
}

// New registers the runtime's collectors on reg (nil is allowed: the
// returned Metrics is then unregistered but still usable standalone,
// which matters for tests that don't want a shared default registry).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Messages delivered to a destination node, by source node type.",
		}, []string{"node_type"}),
		HookHalts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_halts_total",
			Help:      "Hook chain firings that halted delivery, by hook id.",
		}, []string{"hook_id"}),
		DeployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deploy_duration_seconds",
			Help:      "Wall-clock duration of a FlowManager.SetFlows deploy.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.MessagesRouted, m.HookHalts, m.DeployDuration)
	}
	return m
}

// RouteObserved records one message delivered downstream of a node of
// the given type.
func (m *Metrics) RouteObserved(nodeType string) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(nodeType).Inc()
}

// HookHalted records one hook-chain halt for hookID.
func (m *Metrics) HookHalted(hookID string) {
	if m == nil {
		return
	}
	m.HookHalts.WithLabelValues(hookID).Inc()
}

// ObserveDeploy records how long a SetFlows call took. Call with
// time.Since(start) from a deferred closure around the deploy.
func (m *Metrics) ObserveDeploy(d time.Duration) {
	if m == nil {
		return
	}
	m.DeployDuration.Observe(d.Seconds())
}
