// internal/broker/store.go
// Package broker implements the public relay broker: username ownership
// over registrations, waiting-origin slots, active pairs, and pipe mode.
// Persisted registration state is pluggable behind Store; single-process
// deployments use the sqlite implementation, HA deployments swap in the
// Redis store.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no registration exists.
var ErrNotFound = errors.New("broker: registration not found")

// Registration is the single persisted record: one row per username,
// tracking the install that owns it and when it was first/last seen.
type Registration struct {
    Username    string
    InstallID   string
    FirstSeenAt time.Time
    LastSeenAt  time.Time
}

// Store is the broker's pluggable persistence boundary. Implementations must
// be safe for concurrent use.
type Store interface {
    // Get returns the registration for username, or ErrNotFound.
    Get(ctx context.Context, username string) (*Registration, error)

    // Upsert creates a registration on first sight or bumps LastSeenAt for an
    // existing one.
    Upsert(ctx context.Context, reg Registration) error

    // ReclaimOlderThan deletes every registration whose LastSeenAt precedes
    // cutoff and whose username is not in the excluded set (currently
    // waiting or paired), returning how many rows were removed.
    ReclaimOlderThan(ctx context.Context, cutoff time.Time, excluded map[string]struct{}) (int, error)

    Close() error
}
