// internal/broker/reclaim.go
// Periodic reclamation of idle registrations: on startup and periodically,
// delete registration records whose lastSeenAt is older than reclaimDays
// and whose username is not currently waiting or paired. Retries a
// transient store failure with cenkalti/backoff/v4 rather than losing an
// entire reclamation pass to one flaky call.
package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kzahel/yepanywhere/internal/logging"
)

// StartReclaimLoop runs ReclaimOnce immediately and then every interval,
// until ctx is cancelled. Intended to run in its own goroutine.
func (b *Broker) StartReclaimLoop(ctx context.Context, interval time.Duration) {
    b.ReclaimOnce(ctx)
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            b.ReclaimOnce(ctx)
        }
    }
}

// ReclaimOnce deletes registrations idle past cfg.ReclaimDays that are
// neither waiting nor paired.
func (b *Broker) ReclaimOnce(ctx context.Context) {
    cutoff := time.Now().Add(-time.Duration(b.cfg.ReclaimDays) * 24 * time.Hour)
    excluded := b.activeUsernames()

    bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
    var removed int
    err := backoff.Retry(func() error {
        n, err := b.store.ReclaimOlderThan(ctx, cutoff, excluded)
        if err != nil {
            return err
        }
        removed = n
        return nil
    }, bo)
    if err != nil {
        logging.Sugar().Warnw("broker: reclamation failed", "err", err)
        return
    }
    if removed > 0 {
        logging.Sugar().Infow("broker: reclaimed idle registrations", "count", removed)
    }
}

func (b *Broker) activeUsernames() map[string]struct{} {
    b.mu.Lock()
    defer b.mu.Unlock()
    out := make(map[string]struct{}, len(b.waiting)+len(b.pairs))
    for username := range b.waiting {
        out[username] = struct{}{}
    }
    for p := range b.pairs {
        out[p.username] = struct{}{}
    }
    return out
}
