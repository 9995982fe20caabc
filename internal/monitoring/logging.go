package monitoring

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// ParseLogFormat maps a configuration string to a LogFormat; unknown values mean JSON.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

// Context keys read by WithContext.
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
)

// LoggerConfig configures the structured logger
type LoggerConfig struct {
	Level     string
	Format    LogFormat
	Output    io.Writer
	Component string
	Fields    map[string]any
}

// StructuredLogger is the service logger: a logrus entry carrying the service,
// component and any fields added with WithFields.
type StructuredLogger struct {
	entry *logrus.Entry
}

// NewStructuredLogger creates a new structured logger with the given configuration
func NewStructuredLogger(config LoggerConfig) *StructuredLogger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	log := logrus.New()
	log.SetOutput(config.Output)

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch config.Format {
	case FormatText:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	fields := logrus.Fields{"service": "carevault"}
	if config.Component != "" {
		fields["component"] = config.Component
	}
	for k, v := range config.Fields {
		fields[k] = v
	}

	return &StructuredLogger{entry: log.WithFields(fields)}
}

// NewNopLogger returns a logger that discards everything. Used as the default
// when a component is built without one.
func NewNopLogger() *StructuredLogger {
	return NewStructuredLogger(LoggerConfig{Output: io.Discard, Level: "panic"})
}

// WithFields returns a new logger with additional fields
func (l *StructuredLogger) WithFields(fields map[string]any) *StructuredLogger {
	return &StructuredLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithComponent returns a new logger tagged with a component name
func (l *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{entry: l.entry.WithField("component", component)}
}

// WithError returns a new logger carrying err
func (l *StructuredLogger) WithError(err error) *StructuredLogger {
	return &StructuredLogger{entry: l.entry.WithError(err)}
}

// WithContext returns a new logger with request-scoped values from ctx
func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	entry := l.entry.WithContext(ctx)
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		entry = entry.WithField("user_id", userID)
	}
	return &StructuredLogger{entry: entry}
}

func (l *StructuredLogger) Debug(msg string, args ...any) { l.entry.WithFields(pairs(args)).Debug(msg) }
func (l *StructuredLogger) Info(msg string, args ...any)  { l.entry.WithFields(pairs(args)).Info(msg) }
func (l *StructuredLogger) Warn(msg string, args ...any)  { l.entry.WithFields(pairs(args)).Warn(msg) }
func (l *StructuredLogger) Error(msg string, args ...any) { l.entry.WithFields(pairs(args)).Error(msg) }

// Fatal logs at fatal level and exits the process.
func (l *StructuredLogger) Fatal(msg string, args ...any) { l.entry.WithFields(pairs(args)).Fatal(msg) }

// Audit mirrors an audit-log write into the service log.
func (l *StructuredLogger) Audit(userID int64, role, action, details string) {
	l.entry.WithFields(logrus.Fields{
		"audit":   true,
		"user_id": userID,
		"role":    role,
		"action":  action,
		"details": details,
	}).Info("Audit event")
}

// Security logs access refusals and integrity problems.
func (l *StructuredLogger) Security(event string, details map[string]any) {
	l.entry.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"details":  details,
	}).Warn("Security event")
}

// pairs turns alternating key/value arguments into logrus fields. A trailing key
// without a value is kept under "!BADKEY", as slog does.
func pairs(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		fields[key] = args[i+1]
	}
	return fields
}
