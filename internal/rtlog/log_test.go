package rtlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	level     Level
	metricsOn bool
	auditOn   bool
	got       []Record
}

func (h *recordingHandler) Level() Level    { return h.level }
func (h *recordingHandler) MetricsOn() bool { return h.metricsOn }
func (h *recordingHandler) AuditOn() bool   { return h.auditOn }
func (h *recordingHandler) Handle(r Record) { h.got = append(h.got, r) }

func TestShouldReportSeverityGate(t *testing.T) {
	h := &recordingHandler{level: Info}
	assert.True(t, ShouldReport(h, Error))
	assert.True(t, ShouldReport(h, Info))
	assert.False(t, ShouldReport(h, Debug))
}

func TestShouldReportMetricAuditGatesIndependentOfLevel(t *testing.T) {
	h := &recordingHandler{level: Error, metricsOn: true}
	assert.True(t, ShouldReport(h, Metric))
	assert.False(t, ShouldReport(h, Audit))
}

func TestLoggerFansOutToAdmittingHandlersOnly(t *testing.T) {
	quiet := &recordingHandler{level: Error}
	verbose := &recordingHandler{level: Debug}
	l := New(quiet, verbose)

	l.Info("hello", WithType("node"), WithName("n1"))

	assert.Empty(t, quiet.got)
	assert.Len(t, verbose.got, 1)
	assert.Equal(t, "node", verbose.got[0].Type)
	assert.Equal(t, "n1", verbose.got[0].Name)
}

func TestAuditEnrichesFromRequestInfo(t *testing.T) {
	h := &recordingHandler{auditOn: true}
	l := New(h)

	l.Audit("deploy", &RequestInfo{User: "alice", Path: "/flows", IP: "127.0.0.1"})

	require := assert.New(t)
	require.Len(h.got, 1)
	require.Equal("alice", h.got[0].User)
	require.Equal("/flows", h.got[0].Path)
}
