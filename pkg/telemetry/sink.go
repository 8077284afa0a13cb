package telemetry

import (
	"context"
	"time"

	"everlight-os/internal/pkg/logger"
	"everlight-os/pkg/events"
	pkgNats "everlight-os/pkg/nats"
)

// Sink receives numeric counters/gauges tagged by dimensions. Emit is
// fire-and-forget: implementations log failures and never return them,
// so telemetry can never affect a pipeline outcome.
type Sink interface {
	Emit(namespace, metric string, value float64, unit string, dimensions map[string]string)
}

// NATSSink forwards datapoints onto the event bus.
type NATSSink struct {
	pub    *pkgNats.Publisher
	logger logger.ILogger
}

var _ Sink = &NATSSink{}

func NewNATSSink(pub *pkgNats.Publisher, log logger.ILogger) *NATSSink {
	return &NATSSink{pub: pub, logger: log}
}

func (s *NATSSink) Emit(namespace, metric string, value float64, unit string, dimensions map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	event := events.NewMetric(namespace, metric, value, unit, dimensions)
	if err := s.pub.Publish(ctx, event); err != nil {
		s.logger.Warn("Telemetry", "Failed to publish metric", map[string]interface{}{
			"namespace": namespace,
			"metric":    metric,
			"error":     err.Error(),
		})
	}
}

// LogSink writes datapoints to the system log. Fallback when NATS is
// not reachable at startup.
type LogSink struct {
	logger logger.ILogger
}

var _ Sink = &LogSink{}

func NewLogSink(log logger.ILogger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Emit(namespace, metric string, value float64, unit string, dimensions map[string]string) {
	s.logger.Debug("Telemetry", "metric", map[string]interface{}{
		"namespace":  namespace,
		"metric":     metric,
		"value":      value,
		"unit":       unit,
		"dimensions": dimensions,
	})
}

// NoopSink discards everything. Used in tests.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) Emit(string, string, float64, string, map[string]string) {}
