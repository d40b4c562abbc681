package carriers

import (
	"time"

	"go.uber.org/zap"
)

// RequestLog describes one outbound carrier call. Bodies are never recorded.
type RequestLog struct {
	Carrier    string
	Method     string
	Path       string
	Success    bool
	StatusCode int
	Duration   time.Duration
	Error      string
}

// RequestSink receives a RequestLog for every carrier call.
type RequestSink interface {
	Record(entry RequestLog)
}

// NopSink drops everything.
type NopSink struct{}

// Record implements RequestSink.
func (NopSink) Record(RequestLog) {}

// ZapSink writes each call as a structured log line.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink that logs to logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Record implements RequestSink.
func (s *ZapSink) Record(entry RequestLog) {
	fields := []zap.Field{
		zap.String("carrier", entry.Carrier),
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}
	if entry.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", entry.StatusCode))
	}
	if entry.Success {
		s.logger.Debug("Carrier request completed", fields...)
		return
	}
	fields = append(fields, zap.String("error", entry.Error))
	s.logger.Warn("Carrier request failed", fields...)
}

// MultiSink fans a RequestLog out to several sinks.
type MultiSink []RequestSink

// Record implements RequestSink.
func (m MultiSink) Record(entry RequestLog) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(entry)
		}
	}
}
