package progress

import (
	"go.uber.org/zap"

	"github.com/csouto/channel-scout/internal/metrics"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

func (s *LogSink) Publish(event Event) {
	fields := []zap.Field{
		zap.String("session_id", event.SessionID),
		zap.String("stage", event.Stage),
		zap.Float64("fraction", event.Fraction),
		zap.Int("channels", event.Channels),
		zap.Int("quota_used", event.QuotaUsed),
	}
	if event.Term != "" {
		fields = append(fields, zap.String("term", event.Term), zap.String("region", event.Region))
	}
	if event.Note != "" {
		fields = append(fields, zap.String("note", event.Note))
	}
	if event.Stage == StageSessionError {
		s.logger.Error("crawl progress", fields...)
		return
	}
	s.logger.Info("crawl progress", fields...)
}

// MetricsSink mirrors progress into the Prometheus gauges.
type MetricsSink struct{}

func (MetricsSink) Publish(event Event) {
	metrics.SetSessionProgress(event.Fraction)
	switch event.Stage {
	case StageSessionStart:
		metrics.SetSessionRunning(true)
	case StageSessionDone, StageSessionError:
		metrics.SetSessionRunning(false)
	}
}
