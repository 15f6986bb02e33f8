// internal/broker/alertloop.go
// Periodic alert evaluation: on an interval, sample the broker's Prometheus
// metrics and run them through an alerts.Engine so paging rules fire on the
// live process rather than only against whatever scrapes /metrics.
package broker

import (
	"context"
	"time"

	"github.com/kzahel/yepanywhere/internal/alerts"
	"github.com/kzahel/yepanywhere/internal/metrics"
)

// StartAlertLoop evaluates engine against a fresh metrics snapshot every
// interval, until ctx is cancelled. Intended to run in its own goroutine.
func (b *Broker) StartAlertLoop(ctx context.Context, engine *alerts.Engine, interval time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            engine.Evaluate(metrics.BrokerSnapshot())
        }
    }
}
