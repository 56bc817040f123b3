package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

type Config struct {
	Level      LogLevel `json:"level"`
	Format     string   `json:"format"` // json, text
	Output     string   `json:"output"` // stdout, stderr, file path
	TimeFormat string   `json:"time_format"`
	Caller     bool     `json:"caller"`
	AppName    string   `json:"app_name"`
	Version    string   `json:"version"`
}

func NewLogger(config *Config) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&JSONFormatter{
			TimestampFormat: config.TimeFormat,
			AppName:         config.AppName,
			Version:         config.Version,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: config.TimeFormat,
			FullTimestamp:   true,
		})
	}

	switch config.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout", "":
		logger.SetOutput(os.Stdout)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(file)
	}

	logger.SetReportCaller(config.Caller)

	return &Logger{
		logger: logger,
		fields: make(logrus.Fields),
	}, nil
}

// Discard returns a logger that writes nowhere. Used by tests and by
// components constructed without an explicit logger.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{logger: l, fields: make(logrus.Fields)}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	newFields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	return l.WithFields(extractContextFields(ctx))
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) WithAlertID(alertID string) *Logger {
	return l.WithField("alert_id", alertID)
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.WithField("request_id", requestID)
}

func (l *Logger) Debug(msg string) {
	l.logger.WithFields(l.fields).Debug(msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.logger.WithFields(l.fields).Info(msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.logger.WithFields(l.fields).Warn(msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.logger.WithFields(l.fields).Error(msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *Logger) Fatal(msg string) {
	l.logger.WithFields(l.fields).Fatal(msg)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

// Structured logging methods
func (l *Logger) LogAlertEvent(alertID string, event string, details map[string]interface{}) {
	fields := map[string]interface{}{
		"alert_id": alertID,
		"event":    event,
		"type":     "alert_event",
	}

	for k, v := range details {
		fields[k] = v
	}

	l.WithFields(fields).Info("Alert event occurred")
}

// Security event severities.
const (
	SeverityLow  = "low"
	SeverityHigh = "high"
)

// LogSecurityEvent records a rejected credential. Token values must never be
// passed in details.
func (l *Logger) LogSecurityEvent(event string, severity string, details map[string]interface{}) {
	fields := make(map[string]interface{}, len(details)+3)
	for k, v := range details {
		fields[k] = v
	}
	fields["security_event"] = event
	fields["severity"] = severity
	fields["type"] = "security_event"

	if severity == SeverityHigh {
		l.WithFields(fields).Warn("Credential rejected")
		return
	}
	l.WithFields(fields).Info("Credential rejected")
}

func (l *Logger) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}

func (l *Logger) SetLevel(level LogLevel) {
	logrusLevel, err := logrus.ParseLevel(string(level))
	if err != nil {
		logrusLevel = logrus.InfoLevel
	}
	l.logger.SetLevel(logrusLevel)
}

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	SenderIDKey  contextKey = "sender_id"
)

func extractContextFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields["request_id"] = requestID
	}
	if senderID, ok := ctx.Value(SenderIDKey).(string); ok && senderID != "" {
		fields["sender_id"] = senderID
	}

	return fields
}
