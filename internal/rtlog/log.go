// Package rtlog implements the runtime's levelled structured logging:
// numeric levels, a handler interface gated by ShouldReport, and a
// logrus-backed default sink with a hook that stamps default fields.
package rtlog

import "time"

// Level is a numeric log level; lower numbers are more severe except
// for the two out-of-band gates (Audit, Metric) which are filtered
// independently of severity ordering.
type Level int

const (
	Off     Level = 1
	Fatal   Level = 10
	Error   Level = 20
	Warn    Level = 30
	Info    Level = 40
	Debug   Level = 50
	Trace   Level = 60
	Audit   Level = 98
	Metric  Level = 99
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Fatal:
		return "fatal"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	case Audit:
		return "audit"
	case Metric:
		return "metric"
	default:
		return "unknown"
	}
}

// ParseLevel maps a config-file/env-var level name to its numeric
// Level, defaulting to Info on an unrecognised name (never erroring —
// a typo'd LOG_LEVEL should degrade gracefully, not crash startup).
func ParseLevel(name string) Level {
	switch name {
	case "off":
		return Off
	case "fatal":
		return Fatal
	case "error":
		return Error
	case "warn":
		return Warn
	case "debug":
		return Debug
	case "trace":
		return Trace
	case "audit":
		return Audit
	case "metric":
		return Metric
	default:
		return Info
	}
}

// Record is the structured payload passed to a Handler.
type Record struct {
	Level Level
	Msg   string
	Ts    time.Time
	Type  string
	Name  string
	ID    string
	User  string
	Path  string
	IP    string
}

// Handler receives log records that pass its shouldReport gate.
type Handler interface {
	// Level is the handler's configured severity threshold.
	Level() Level
	// MetricsOn/AuditOn report whether this handler additionally
	// accepts METRIC/AUDIT records regardless of Level.
	MetricsOn() bool
	AuditOn() bool
	// Handle is called for every record that ShouldReport admits.
	Handle(r Record)
}

// ShouldReport is the record-admission filter:
//
//	(l==METRIC && metricsOn) || (l==AUDIT && auditOn) || l<=handler.level
func ShouldReport(h Handler, l Level) bool {
	switch {
	case l == Metric:
		return h.MetricsOn()
	case l == Audit:
		return h.AuditOn()
	default:
		return l <= h.Level()
	}
}

// Logger fans a record out to every registered handler whose
// ShouldReport gate admits it.
type Logger struct {
	handlers []Handler
}

// New creates a Logger with the given handlers.
func New(handlers ...Handler) *Logger {
	return &Logger{handlers: handlers}
}

// AddHandler registers an additional sink.
func (l *Logger) AddHandler(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Log emits a record at the given level to every admitting handler.
func (l *Logger) Log(level Level, msg string, fields ...func(*Record)) {
	r := Record{Level: level, Msg: msg, Ts: time.Now()}
	for _, f := range fields {
		f(&r)
	}
	for _, h := range l.handlers {
		if ShouldReport(h, level) {
			h.Handle(r)
		}
	}
}

func (l *Logger) Fatal(msg string, fields ...func(*Record)) { l.Log(Fatal, msg, fields...) }
func (l *Logger) Error(msg string, fields ...func(*Record)) { l.Log(Error, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...func(*Record))  { l.Log(Warn, msg, fields...) }
func (l *Logger) Info(msg string, fields ...func(*Record))  { l.Log(Info, msg, fields...) }
func (l *Logger) Debug(msg string, fields ...func(*Record)) { l.Log(Debug, msg, fields...) }
func (l *Logger) Trace(msg string, fields ...func(*Record)) { l.Log(Trace, msg, fields...) }
func (l *Logger) Metric(msg string, fields ...func(*Record)) { l.Log(Metric, msg, fields...) }

// Audit enriches the record from a request-like collaborator before
// logging at the AUDIT level.
func (l *Logger) Audit(msg string, req *RequestInfo) {
	l.Log(Audit, msg, func(r *Record) {
		if req == nil {
			return
		}
		r.User = req.User
		r.Path = req.Path
		r.IP = req.IP
	})
}

// RequestInfo is the minimal shape Audit needs from an HTTP request;
// kept separate from net/http so rtlog has no transport dependency.
type RequestInfo struct {
	User string
	Path string
	IP   string
}

// WithType sets Record.Type (e.g. "node", "flow").
func WithType(t string) func(*Record) { return func(r *Record) { r.Type = t } }

// WithName sets Record.Name.
func WithName(n string) func(*Record) { return func(r *Record) { r.Name = n } }

// WithID sets Record.ID.
func WithID(id string) func(*Record) { return func(r *Record) { r.ID = id } }
