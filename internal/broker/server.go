// internal/broker/server.go
// The pairing state machine: registration ownership, waiting slots, pairs,
// and the transition into raw pipe mode. A small struct guards shared maps
// with a mutex; one goroutine per accepted connection reads its socket and
// forwards raw frames to whichever peer it is currently paired with.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/metrics"
)

// waitingSlot is a registered origin parked and waiting for a client to pair
// with it.
type waitingSlot struct {
    username  string
    installID string
    conn      *websocket.Conn
    peer      atomic.Value // holds *websocket.Conn once paired
}

func (s *waitingSlot) peerConn() *websocket.Conn {
    v := s.peer.Load()
    if v == nil {
        return nil
    }
    return v.(*websocket.Conn)
}

// pair is an active origin/client socket pair in raw pipe mode.
type pair struct {
    username string
    origin   *websocket.Conn
    client   *websocket.Conn

    closeOnce sync.Once
}

// Broker owns the in-memory pairing state: waiting slots and active pairs.
// Registration persistence itself lives behind Store.
type Broker struct {
    cfg   Config
    store Store

    startedAt time.Time

    mu      sync.Mutex
    waiting map[string]*waitingSlot
    pairs   map[*pair]struct{}
}

func New(cfg Config, store Store) *Broker {
    return &Broker{
        cfg:       cfg,
        store:     store,
        startedAt: time.Now(),
        waiting:   make(map[string]*waitingSlot),
        pairs:     make(map[*pair]struct{}),
    }
}

// Uptime reports how long this broker process has been running.
func (b *Broker) Uptime() time.Duration { return time.Since(b.startedAt) }

func (b *Broker) WaitingCount() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.waiting)
}

func (b *Broker) PairCount() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.pairs)
}

// Accept handles one freshly-upgraded WebSocket: reads exactly one handshake
// message (server_register or client_connect) and dispatches accordingly.
// Any other first message, or a malformed one, closes the socket.
func (b *Broker) Accept(conn *websocket.Conn) {
    _, raw, err := conn.ReadMessage()
    if err != nil {
        _ = conn.Close()
        return
    }
    var env Envelope
    if err := json.Unmarshal(raw, &env); err != nil {
        _ = conn.Close()
        return
    }
    switch env.Type {
    case TypeServerRegister:
        var msg ServerRegisterMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            _ = conn.Close()
            return
        }
        b.handleServerRegister(conn, &msg)
    case TypeClientConnect:
        var msg ClientConnectMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            _ = conn.Close()
            return
        }
        b.handleClientConnect(conn, &msg)
    default:
        _ = conn.Close()
    }
}

// validUsername enforces the broker's username token format: 3-32
// characters, restricted to [a-z0-9-], and never starting or ending with a
// hyphen.
func validUsername(u string) bool {
    if len(u) < 3 || len(u) > 32 {
        return false
    }
    if u[0] == '-' || u[len(u)-1] == '-' {
        return false
    }
    for _, r := range u {
        switch {
        case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
        default:
            return false
        }
    }
    return true
}

// handleServerRegister implements its username ownership rules.
func (b *Broker) handleServerRegister(conn *websocket.Conn, msg *ServerRegisterMsg) {
    if !validUsername(msg.Username) {
        metrics.BrokerRejectionsTotal.WithLabelValues("invalid_username").Inc()
        b.sendAndClose(conn, &ServerRejectedMsg{Type: TypeServerRejected, Reason: "invalid_username"})
        return
    }

    ctx := context.Background()
    now := time.Now().UTC()
    reg, err := b.store.Get(ctx, msg.Username)
    switch {
    case errors.Is(err, ErrNotFound):
        if err := b.store.Upsert(ctx, Registration{
            Username: msg.Username, InstallID: msg.InstallID, FirstSeenAt: now, LastSeenAt: now,
        }); err != nil {
            logging.Sugar().Warnw("broker: register upsert failed", "err", err)
            _ = conn.Close()
            return
        }
    case err != nil:
        logging.Sugar().Warnw("broker: store get failed", "err", err)
        _ = conn.Close()
        return
    case reg.InstallID != msg.InstallID:
        metrics.BrokerRejectionsTotal.WithLabelValues("username_taken").Inc()
        b.sendAndClose(conn, &ServerRejectedMsg{Type: TypeServerRejected, Reason: "username_taken"})
        return
    default:
        if err := b.store.Upsert(ctx, Registration{
            Username: reg.Username, InstallID: reg.InstallID, FirstSeenAt: reg.FirstSeenAt, LastSeenAt: now,
        }); err != nil {
            logging.Sugar().Warnw("broker: register upsert failed", "err", err)
            _ = conn.Close()
            return
        }
    }

    slot := &waitingSlot{username: msg.Username, installID: msg.InstallID, conn: conn}

    b.mu.Lock()
    if old, exists := b.waiting[msg.Username]; exists {
        // Same install replaces: close its previous socket first.
        _ = old.conn.Close()
    }
    b.waiting[msg.Username] = slot
    waitingN := len(b.waiting)
    b.mu.Unlock()

    metrics.BrokerRegistrationsTotal.Inc()
    metrics.BrokerWaitingSlots.Set(float64(waitingN))

    if err := b.writeJSON(conn, &ServerRegisteredMsg{Type: TypeServerRegistered}); err != nil {
        b.removeWaiting(msg.Username, slot)
        return
    }

    b.watchOrigin(slot)
}

// handleClientConnect implements its client connect rules.
func (b *Broker) handleClientConnect(conn *websocket.Conn, msg *ClientConnectMsg) {
    ctx := context.Background()
    if _, err := b.store.Get(ctx, msg.Username); err != nil {
        if errors.Is(err, ErrNotFound) {
            metrics.BrokerRejectionsTotal.WithLabelValues("unknown_username").Inc()
            b.sendAndClose(conn, &ClientErrorMsg{Type: TypeClientError, Reason: "unknown_username"})
        } else {
            logging.Sugar().Warnw("broker: store get failed", "err", err)
            _ = conn.Close()
        }
        return
    }

    b.mu.Lock()
    slot, ok := b.waiting[msg.Username]
    if ok {
        delete(b.waiting, msg.Username)
    }
    waitingN := len(b.waiting)
    b.mu.Unlock()

    if !ok {
        metrics.BrokerWaitingSlots.Set(float64(waitingN))
        metrics.BrokerRejectionsTotal.WithLabelValues("server_offline").Inc()
        b.sendAndClose(conn, &ClientErrorMsg{Type: TypeClientError, Reason: "server_offline"})
        return
    }
    metrics.BrokerWaitingSlots.Set(float64(waitingN))

    p := &pair{username: msg.Username, origin: slot.conn, client: conn}
    b.mu.Lock()
    b.pairs[p] = struct{}{}
    pairN := len(b.pairs)
    b.mu.Unlock()
    metrics.BrokerActivePairs.Set(float64(pairN))

    slot.peer.Store(conn)

    if err := b.writeJSON(conn, &ClientConnectedMsg{Type: TypeClientConnected}); err != nil {
        b.teardownPair(p)
        return
    }

    b.watchClient(p)
}

// watchOrigin runs for the lifetime of a registered origin connection: while
// waiting it discards unexpected messages (the protocol defines none), and
// once paired it forwards every frame to the client side verbatim.
func (b *Broker) watchOrigin(slot *waitingSlot) {
    for {
        mt, data, err := slot.conn.ReadMessage()
        if err != nil {
            b.removeWaiting(slot.username, slot)
            if peer := slot.peerConn(); peer != nil {
                _ = peer.Close()
            }
            return
        }
        peer := slot.peerConn()
        if peer == nil {
            continue
        }
        metrics.BrokerBytesPipedTotal.Add(float64(len(data)))
        if err := peer.WriteMessage(mt, data); err != nil {
            _ = slot.conn.Close()
            _ = peer.Close()
            return
        }
    }
}

// watchClient forwards every frame from the client side to the paired
// origin, verbatim, until either side closes.
func (b *Broker) watchClient(p *pair) {
    for {
        mt, data, err := p.client.ReadMessage()
        if err != nil {
            b.teardownPair(p)
            return
        }
        metrics.BrokerBytesPipedTotal.Add(float64(len(data)))
        if err := p.origin.WriteMessage(mt, data); err != nil {
            b.teardownPair(p)
            return
        }
    }
}

func (b *Broker) teardownPair(p *pair) {
    p.closeOnce.Do(func() {
        _ = p.origin.Close()
        _ = p.client.Close()
        b.mu.Lock()
        delete(b.pairs, p)
        pairN := len(b.pairs)
        b.mu.Unlock()
        metrics.BrokerActivePairs.Set(float64(pairN))
    })
}

// removeWaiting deletes slot from the waiting map, but only if it is still
// the current occupant for username (it may have already been replaced or
// claimed by a pairing).
func (b *Broker) removeWaiting(username string, slot *waitingSlot) {
    b.mu.Lock()
    if cur, ok := b.waiting[username]; ok && cur == slot {
        delete(b.waiting, username)
    }
    waitingN := len(b.waiting)
    b.mu.Unlock()
    metrics.BrokerWaitingSlots.Set(float64(waitingN))
}

func (b *Broker) writeJSON(conn *websocket.Conn, v any) error {
    payload, err := json.Marshal(v)
    if err != nil {
        return err
    }
    return conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *Broker) sendAndClose(conn *websocket.Conn, v any) {
    _ = b.writeJSON(conn, v)
    _ = conn.Close()
}
