// internal/gateway/server.go
// Package gateway terminates one remote client's WebSocket per connection,
// drives it through SRP to authenticated, and demultiplexes application
// messages to local collaborators. Each accepted connection owns its own
// state machine and write path; there is no shared fan-out buffer.
package gateway

import (
	"context"

	"github.com/kzahel/yepanywhere/internal/wire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Gateway owns the configuration and collaborators shared by every
// connection it accepts. One Gateway instance serves exactly one configured
// origin identity (a single `username`/credential pair).
type Gateway struct {
    cfg           Config
    collaborators Collaborators
    auth          *authManager
    tracer        trace.Tracer
}

// New constructs a Gateway ready to accept connections via Accept.
func New(cfg Config, collaborators Collaborators) *Gateway {
    return &Gateway{
        cfg:           cfg,
        collaborators: collaborators,
        auth:          newAuthManager(collaborators.Credentials, cfg),
        tracer:        otel.Tracer("yepanywhere/gateway"),
    }
}

// Accept takes ownership of conn and serves it until it closes. It returns
// once the connection's dispatch loop exits; callers typically invoke this
// in its own goroutine per accepted socket (see listener.go).
func (g *Gateway) Accept(conn wire.Conn) {
    c := newConnection(g, conn)
    c.serve()
}

// Logout revokes sessionKey's resume token eligibility; a resumed connection
// using a token issued against this key is rejected from then on.
func (g *Gateway) Logout(sessionKey [32]byte) {
    g.auth.revoke(sessionKey)
}

// startSpan opens a span correlated to a request/subscription id.
func (g *Gateway) startSpan(ctx context.Context, name, correlationID string) (context.Context, trace.Span) {
    ctx, span := g.tracer.Start(ctx, name)
    span.SetAttributes(correlationAttr(correlationID))
    return ctx, span
}
