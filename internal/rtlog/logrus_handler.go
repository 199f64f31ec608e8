package rtlog

import (
	"github.com/sirupsen/logrus"
)

// LogrusHandler is the default Handler, backed by logrus with a JSON
// formatter.
type LogrusHandler struct {
	entry     *logrus.Entry
	level     Level
	metricsOn bool
	auditOn   bool
}

// NewLogrusHandler builds a LogrusHandler at the given severity level.
// metricsOn/auditOn independently enable the METRIC/AUDIT out-of-band
// gates regardless of level.
func NewLogrusHandler(level Level, metricsOn, auditOn bool) *LogrusHandler {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.AddHook(&serviceFieldHook{})
	return &LogrusHandler{
		entry:     logrus.NewEntry(log),
		level:     level,
		metricsOn: metricsOn,
		auditOn:   auditOn,
	}
}

func (h *LogrusHandler) Level() Level      { return h.level }
func (h *LogrusHandler) MetricsOn() bool   { return h.metricsOn }
func (h *LogrusHandler) AuditOn() bool     { return h.auditOn }

func (h *LogrusHandler) Handle(r Record) {
	fields := logrus.Fields{}
	if r.Type != "" {
		fields["type"] = r.Type
	}
	if r.Name != "" {
		fields["name"] = r.Name
	}
	if r.ID != "" {
		fields["id"] = r.ID
	}
	if r.User != "" {
		fields["user"] = r.User
	}
	if r.Path != "" {
		fields["path"] = r.Path
	}
	if r.IP != "" {
		fields["ip"] = r.IP
	}
	entry := h.entry.WithFields(fields).WithTime(r.Ts)

	switch r.Level {
	case Fatal:
		entry.Error(r.Msg) // never os.Exit from a library sink
	case Error:
		entry.Error(r.Msg)
	case Warn:
		entry.Warn(r.Msg)
	case Info, Audit, Metric:
		entry.Info(r.Msg)
	case Debug:
		entry.Debug(r.Msg)
	case Trace:
		entry.Trace(r.Msg)
	default:
		entry.Info(r.Msg)
	}
}

// serviceFieldHook stamps every entry with the owning service name.
type serviceFieldHook struct{}

func (serviceFieldHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceFieldHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = "flowrunner"
	return nil
}
