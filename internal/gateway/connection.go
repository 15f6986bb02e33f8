// internal/gateway/connection.go
// One connection owns exactly one WebSocket, one frame codec, and the SRP
// handshake state machine driving it to `authenticated`. All inbound
// dispatch happens on a single goroutine per connection; channel event
// forwarding (channels.go) runs on whichever goroutine publishes the event,
// plus one heartbeat goroutine per subscription, and only ever writes
// outward through the shared codec, whose writes are themselves serialized.
package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/metrics"
	"github.com/kzahel/yepanywhere/internal/srp"
	"github.com/kzahel/yepanywhere/internal/wire"
)

// connState mirrors its gateway connection state sum type.
type connState int

const (
    connUnauthenticated connState = iota
    connSRPWaitingProof
    connAuthenticated
)

type subscriptionState struct {
    id      string
    channel string
    cancel  func()
}

type uploadState struct {
    uploadID      string
    expectedSize  int64
    bytesReceived int64
    lastReport    int64
}

// connection is one authenticated (or authenticating) gateway WebSocket.
type connection struct {
    gw    *Gateway
    codec *wire.Codec

    state      connState
    srpSrv     *srp.ServerSession
    sessionKey [32]byte
    username   string

    subsMu sync.Mutex
    subs   map[string]*subscriptionState
    subOrd []string // insertion order, for reverse-order close

    uploadsMu sync.Mutex
    uploads   map[string]*uploadState
    uploadOrd []string
}

func newConnection(gw *Gateway, conn wire.Conn) *connection {
    c := &connection{
        gw:      gw,
        codec:   wire.NewCodec(conn),
        subs:    make(map[string]*subscriptionState),
        uploads: make(map[string]*uploadState),
    }
    if !gw.cfg.RemoteAccessEnabled {
        // Remote access disabled: skip SRP entirely and start authenticated
        // with sessionKey=∅, so frames are never encrypted.
        c.state = connAuthenticated
    }
    return c
}

// serve runs the per-connection read/dispatch loop until the socket closes.
// It never returns an error to the caller; all failures are logged and end
// in cleanup.
func (c *connection) serve() {
    metrics.GatewayConnectionsActive.Inc()
    defer metrics.GatewayConnectionsActive.Dec()
    defer c.cleanup()

    for {
        raw, err := c.readNext()
        if err != nil {
            return
        }
        c.dispatch(raw)
    }
}

func (c *connection) readNext() ([]byte, error) {
    var raw []byte
    var err error
    if c.state == connAuthenticated {
        raw, err = c.codec.ReadJSON()
    } else {
        raw, err = c.codec.ReadPlaintextJSON()
    }
    if err != nil {
        if fe, ok := err.(*wire.FrameError); ok {
            logging.Sugar().Warnw("frame error", "kind", fe.Kind, "err", fe.Err)
            metrics.GatewayFrameErrorsTotal.WithLabelValues(string(fe.Kind)).Inc()
            return nil, nil // drop message, keep connection
        }
        if errors.Is(err, wire.ErrDecryptFailed) || errors.Is(err, wire.ErrNonceSize) ||
            errors.Is(err, wire.ErrNotEncrypted) || errors.Is(err, wire.ErrUnexpectedCipher) {
            logging.Sugar().Warnw("dropped frame", "err", err)
            return nil, nil // nothing is sent to the peer
        }
        return nil, err
    }
    return raw, nil
}

func (c *connection) dispatch(raw []byte) {
    if raw == nil {
        return
    }
    var env wire.Envelope
    if err := json.Unmarshal(raw, &env); err != nil {
        logging.Sugar().Warnw("invalid json message", "err", err)
        return
    }

    switch c.state {
    case connUnauthenticated, connSRPWaitingProof:
        c.dispatchHandshake(env.Type, raw)
    case connAuthenticated:
        c.dispatchApplication(env.Type, raw)
    }
}

func (c *connection) dispatchHandshake(t wire.Type, raw []byte) {
    switch t {
    case wire.TypeSRPHello:
        var msg wire.SRPHello
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleSRPHello(&msg)
    case wire.TypeSRPProof:
        var msg wire.SRPProof
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleSRPProof(&msg)
    case wire.TypeResume:
        var msg wire.ResumeMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleResume(&msg)
    default:
        logging.Sugar().Debugw("message in handshake state", "type", t)
    }
}

func (c *connection) dispatchApplication(t wire.Type, raw []byte) {
    switch t {
    case wire.TypeRequest:
        var msg wire.RequestMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleRequest(&msg)
    case wire.TypeSubscribe:
        var msg wire.SubscribeMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleSubscribe(&msg)
    case wire.TypeUnsubscribe:
        var msg wire.UnsubscribeMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleUnsubscribe(&msg)
    case wire.TypeUploadStart:
        var msg wire.UploadStartMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleUploadStart(&msg)
    case wire.TypeUploadChunk:
        var msg wire.UploadChunkMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleUploadChunk(&msg)
    case wire.TypeUploadEnd:
        var msg wire.UploadEndMsg
        if err := json.Unmarshal(raw, &msg); err != nil {
            return
        }
        c.handleUploadEnd(&msg)
    default:
        logging.Sugar().Debugw("unknown application message type", "type", t)
    }
}

// authenticate installs sessionKey, flips state to authenticated, and wires
// the codec to start requiring encrypted envelopes.
func (c *connection) authenticate(username string, sessionKey [32]byte) {
    c.username = username
    c.sessionKey = sessionKey
    c.state = connAuthenticated
    key := sessionKey
    c.codec.SetKey(&key)
}

// cleanup runs on socket close: cancel every subscription and upload in
// reverse insertion order.
func (c *connection) cleanup() {
    c.subsMu.Lock()
    order := append([]string(nil), c.subOrd...)
    c.subsMu.Unlock()
    for i := len(order) - 1; i >= 0; i-- {
        c.subsMu.Lock()
        sub, ok := c.subs[order[i]]
        delete(c.subs, order[i])
        c.subsMu.Unlock()
        if ok && sub.cancel != nil {
            sub.cancel()
        }
        if ok {
            metrics.GatewaySubscriptionsActive.Dec()
        }
    }

    c.uploadsMu.Lock()
    uorder := append([]string(nil), c.uploadOrd...)
    c.uploadsMu.Unlock()
    for i := len(uorder) - 1; i >= 0; i-- {
        c.uploadsMu.Lock()
        up, ok := c.uploads[uorder[i]]
        delete(c.uploads, uorder[i])
        c.uploadsMu.Unlock()
        if ok && c.gw.collaborators.Uploads != nil {
            c.gw.collaborators.Uploads.CancelUpload(up.uploadID)
        }
        if ok {
            metrics.GatewayUploadsActive.Dec()
        }
    }

    _ = c.codec.Close()
    logging.Sugar().Infow("gateway connection closed", "username", c.username)
}

func (c *connection) send(v any) {
    if err := c.codec.WriteJSON(v); err != nil {
        logging.Sugar().Debugw("write failed", "err", err)
    }
}

func (c *connection) sendPlaintext(v any) {
    if err := c.codec.WritePlaintextJSON(v); err != nil {
        logging.Sugar().Debugw("plaintext write failed", "err", err)
    }
}

const heartbeatDefault = 30 * time.Second
