package rtmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRouteObservedIncrementsByNodeType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "flowrt_test")

	m.RouteObserved("inject")
	m.RouteObserved("inject")
	m.RouteObserved("switch")

	if got := counterValue(t, m.MessagesRouted.WithLabelValues("inject")); got != 2 {
		t.Fatalf("expected 2 inject routes, got %v", got)
	}
	if got := counterValue(t, m.MessagesRouted.WithLabelValues("switch")); got != 1 {
		t.Fatalf("expected 1 switch route, got %v", got)
	}
}

func TestHookHaltedIncrementsByHookID(t *testing.T) {
	m := New(nil, "flowrt_test_nilreg")
	m.HookHalted("onSend")
	m.HookHalted("onSend")

	if got := counterValue(t, m.HookHalts.WithLabelValues("onSend")); got != 2 {
		t.Fatalf("expected 2 halts, got %v", got)
	}
}

func TestObserveDeployRecordsIntoHistogram(t *testing.T) {
	m := New(nil, "flowrt_test_deploy")
	m.ObserveDeploy(50 * time.Millisecond)

	var out dto.Metric
	if err := m.DeployDuration.Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.Histogram.GetSampleCount() != 1 {
		t.Fatalf("expected 1 sample, got %d", out.Histogram.GetSampleCount())
	}
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	m.RouteObserved("x")
	m.HookHalted("y")
	m.ObserveDeploy(time.Second)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	return out.Counter.GetValue()
}
