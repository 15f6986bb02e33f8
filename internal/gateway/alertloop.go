// internal/gateway/alertloop.go
// Periodic alert evaluation, mirroring the broker's alert loop: sample the
// gateway's Prometheus metrics on an interval and feed them to an
// alerts.Engine.
package gateway

import (
	"context"
	"time"

	"github.com/kzahel/yepanywhere/internal/alerts"
	"github.com/kzahel/yepanywhere/internal/metrics"
)

// StartAlertLoop evaluates engine against a fresh metrics snapshot every
// interval, until ctx is cancelled. Intended to run in its own goroutine.
func (g *Gateway) StartAlertLoop(ctx context.Context, engine *alerts.Engine, interval time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            engine.Evaluate(metrics.GatewaySnapshot())
        }
    }
}
