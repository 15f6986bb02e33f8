// internal/alerts/sinks/log.go
// Log sink prints alert firings through the shared structured logger.
package sinks

import (
	"go.uber.org/zap"

	"github.com/kzahel/yepanywhere/internal/logging"
)

// LogSink satisfies alerts.Sink with no configuration.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Notify(ruleName, msg string) {
    logging.Logger().Warn("alert fired", zap.String("rule", ruleName), zap.String("msg", msg))
}
