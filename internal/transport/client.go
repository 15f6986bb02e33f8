// internal/transport/client.go
// The client transport: request/subscribe/upload over one WebSocket,
// SRP-authenticated via internal/srp, framed and encrypted via internal/wire.
// A gorilla/websocket dial plus a single reader goroutine demultiplexes
// responses, events, and upload progress by id.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/srp"
	"github.com/kzahel/yepanywhere/internal/wire"
)

// ErrConnectionLost is delivered to every pending operation when the socket
// closes.
var ErrConnectionLost = errors.New("transport: connection lost")

// DefaultRequestTimeout is the request() default.
const DefaultRequestTimeout = 30 * time.Second

// DefaultChunkSize is the upload() default chunk size.
const DefaultChunkSize = 64 * 1024

// StatusError is returned by Request when the gateway replies with an
// application-level status >= 400.
type StatusError struct {
    Status int
    Body   json.RawMessage
}

func (e *StatusError) Error() string {
    return fmt.Sprintf("transport: request failed with status %d", e.Status)
}

// Config parameterises Connect.
type Config struct {
    URL      string // ws(s)://host:port/ws
    Username string
    Password []byte

    RequestTimeout time.Duration
}

// Transport owns exactly one open WebSocket per logical connection.
type Transport struct {
    cfg   Config
    codec *wire.Codec

    inflight *inflight

    closeOnce sync.Once
    closed    chan struct{}
}

// Connect dials url, runs the SRP handshake, and starts the read loop.
// Reconnection is out of scope — callers dispose and recreate on
// failure.
func Connect(ctx context.Context, cfg Config) (*Transport, error) {
    if cfg.RequestTimeout == 0 {
        cfg.RequestTimeout = DefaultRequestTimeout
    }
    conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
    if err != nil {
        return nil, err
    }

    codec := wire.NewCodec(conn)
    t := &Transport{
        cfg:      cfg,
        codec:    codec,
        inflight: newInflight(),
        closed:   make(chan struct{}),
    }

    if err := t.handshake(); err != nil {
        _ = codec.Close()
        return nil, err
    }

    go t.readLoop()
    return t, nil
}

func (t *Transport) handshake() error {
    cs := srp.NewClientSession(srp.Group2048, t.cfg.Username, t.cfg.Password)

    if err := t.codec.WritePlaintextJSON(cs.Hello()); err != nil {
        return err
    }
    raw, err := t.codec.ReadPlaintextJSON()
    if err != nil {
        return err
    }
    var challenge wire.SRPChallenge
    if err := json.Unmarshal(raw, &challenge); err != nil {
        return err
    }

    proof, err := cs.ComputeProof(&challenge)
    if err != nil {
        return err
    }
    if err := t.codec.WritePlaintextJSON(proof); err != nil {
        return err
    }
    raw, err = t.codec.ReadPlaintextJSON()
    if err != nil {
        return err
    }
    var verify wire.SRPVerify
    if err := json.Unmarshal(raw, &verify); err != nil {
        return err
    }
    if err := cs.VerifyServer(&verify); err != nil {
        return err
    }

    key := cs.SessionKey()
    t.codec.SetKey(&key)
    return nil
}

// Close tears the socket down and fails every pending operation.
func (t *Transport) Close() error {
    var err error
    t.closeOnce.Do(func() {
        close(t.closed)
        err = t.codec.Close()
        t.inflight.closeAll(ErrConnectionLost)
    })
    return err
}

func (t *Transport) readLoop() {
    defer t.inflight.closeAll(ErrConnectionLost)
    for {
        raw, err := t.codec.ReadJSON()
        if err != nil {
            return
        }
        t.dispatch(raw)
    }
}

func (t *Transport) dispatch(raw []byte) {
    var env wire.Envelope
    if err := json.Unmarshal(raw, &env); err != nil {
        logging.Sugar().Warnw("transport: invalid json", "err", err)
        return
    }
    switch env.Type {
    case wire.TypeResponse:
        var msg wire.ResponseMsg
        if json.Unmarshal(raw, &msg) == nil {
            if p, ok := t.inflight.takeRequest(msg.ID); ok {
                p.resp <- &msg
            }
        }
    case wire.TypeEvent:
        var msg wire.EventMsg
        if json.Unmarshal(raw, &msg) == nil {
            if s, ok := t.inflight.getSubscription(msg.SubscriptionID); ok && s.onEvent != nil {
                s.onEvent(&msg)
            }
        }
    case wire.TypeUploadProgress:
        var msg wire.UploadProgressMsg
        if json.Unmarshal(raw, &msg) == nil {
            if u, ok := t.inflight.getUpload(msg.UploadID); ok {
                select {
                case u.progress <- &msg:
                default:
                }
            }
        }
    case wire.TypeUploadComplete:
        var msg wire.UploadCompleteMsg
        if json.Unmarshal(raw, &msg) == nil {
            if u, ok := t.inflight.takeUpload(msg.UploadID); ok {
                u.complete <- &msg
            }
        }
    case wire.TypeUploadError:
        var msg wire.UploadErrorMsg
        if json.Unmarshal(raw, &msg) == nil {
            if u, ok := t.inflight.takeUpload(msg.UploadID); ok {
                u.failed <- &msg
            }
        }
    default:
        logging.Sugar().Debugw("transport: unhandled message type", "type", env.Type)
    }
}

// Request sends a request message and awaits its matching response. It
// rejects on socket close, on status >= 400 (as *StatusError), or
// after cfg.RequestTimeout.
func (t *Transport) Request(ctx context.Context, method, path string, headers map[string]string, body json.RawMessage) (*wire.ResponseMsg, error) {
    id := uuid.NewString()
    p := t.inflight.addRequest(id)

    if err := t.codec.WriteJSON(&wire.RequestMsg{
        Type: wire.TypeRequest, ID: id, Method: method, Path: path, Headers: headers, Body: body,
    }); err != nil {
        t.inflight.takeRequest(id)
        return nil, err
    }

    timeout := t.cfg.RequestTimeout
    if timeout == 0 {
        timeout = DefaultRequestTimeout
    }
    timer := time.NewTimer(timeout)
    defer timer.Stop()

    select {
    case resp, ok := <-p.resp:
        if !ok {
            return nil, ErrConnectionLost
        }
        if resp.Status >= 400 {
            return resp, &StatusError{Status: resp.Status, Body: resp.Body}
        }
        return resp, nil
    case <-timer.C:
        t.inflight.takeRequest(id)
        return nil, fmt.Errorf("transport: request %s timed out after %s", id, timeout)
    case <-ctx.Done():
        t.inflight.takeRequest(id)
        return nil, ctx.Err()
    case <-t.closed:
        return nil, ErrConnectionLost
    }
}

// Subscriber is the pair of callbacks a subscription dispatches events to.
type Subscriber struct {
    OnEvent func(*wire.EventMsg)
    OnClose func(error)
}

// Subscribe opens a subscription and returns a closer that unsubscribes
//. On socket close, handlers.OnClose fires for every open
// subscription.
func (t *Transport) Subscribe(channel, sessionID, lastEventID string, handlers Subscriber) (func(), error) {
    id := uuid.NewString()
    t.inflight.addSubscription(id, &subscription{onEvent: handlers.OnEvent, onClose: handlers.OnClose})

    if err := t.codec.WriteJSON(&wire.SubscribeMsg{
        Type: wire.TypeSubscribe, SubscriptionID: id, Channel: channel, SessionID: sessionID, LastEventID: lastEventID,
    }); err != nil {
        t.inflight.removeSubscription(id)
        return nil, err
    }

    closer := func() {
        if _, ok := t.inflight.removeSubscription(id); ok {
            _ = t.codec.WriteJSON(&wire.UnsubscribeMsg{Type: wire.TypeUnsubscribe, SubscriptionID: id})
        }
    }
    return closer, nil
}
