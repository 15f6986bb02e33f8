package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kzahel/yepanywhere/internal/gateway"
	"github.com/kzahel/yepanywhere/internal/gateway/demo"
	"github.com/kzahel/yepanywhere/internal/gateway/uploadstore"
	"github.com/kzahel/yepanywhere/internal/transport"
	"github.com/kzahel/yepanywhere/internal/wire"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func startTestGateway(t *testing.T, collaborators gateway.Collaborators, username, password string) *httptest.Server {
    t.Helper()
    creds, err := demo.NewCredentials(username, password)
    if err != nil {
        t.Fatalf("credentials: %v", err)
    }
    collaborators.Credentials = creds

    cfg := gateway.DefaultConfig()
    cfg.HeartbeatInterval = time.Hour
    gw := gateway.New(cfg, collaborators)

    mux := http.NewServeMux()
    mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
        conn, err := testUpgrader.Upgrade(w, r, nil)
        if err != nil {
            return
        }
        gw.Accept(conn)
    })
    srv := httptest.NewServer(mux)
    t.Cleanup(srv.Close)
    return srv
}

func wsURL(srv *httptest.Server) string {
    return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestTransportRequestRoundTrip(t *testing.T) {
    srv := startTestGateway(t, gateway.Collaborators{Mux: demo.Mux{}}, "alice", "s3cret")

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    tr, err := transport.Connect(ctx, transport.Config{URL: wsURL(srv), Username: "alice", Password: []byte("s3cret")})
    if err != nil {
        t.Fatalf("connect: %v", err)
    }
    defer tr.Close()

    resp, err := tr.Request(ctx, "GET", "/health", nil, nil)
    if err != nil {
        t.Fatalf("request: %v", err)
    }
    if resp.Status != 200 {
        t.Fatalf("status = %d, want 200", resp.Status)
    }
}

func TestTransportRequestErrorStatus(t *testing.T) {
    srv := startTestGateway(t, gateway.Collaborators{Mux: demo.Mux{}}, "bob", "hunter2")

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    tr, err := transport.Connect(ctx, transport.Config{URL: wsURL(srv), Username: "bob", Password: []byte("hunter2")})
    if err != nil {
        t.Fatalf("connect: %v", err)
    }
    defer tr.Close()

    _, err = tr.Request(ctx, "GET", "/does-not-exist", nil, nil)
    var statusErr *transport.StatusError
    if err == nil {
        t.Fatal("expected error for 404 response")
    }
    if !asStatusError(err, &statusErr) || statusErr.Status != 404 {
        t.Fatalf("got %v, want *StatusError{Status:404}", err)
    }
}

func asStatusError(err error, target **transport.StatusError) bool {
    se, ok := err.(*transport.StatusError)
    if ok {
        *target = se
    }
    return ok
}

func TestTransportSubscribeReceivesEvents(t *testing.T) {
    bus := demo.NewBus()
    srv := startTestGateway(t, gateway.Collaborators{Mux: demo.Mux{}, Bus: bus}, "carol", "pw")

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    tr, err := transport.Connect(ctx, transport.Config{URL: wsURL(srv), Username: "carol", Password: []byte("pw")})
    if err != nil {
        t.Fatalf("connect: %v", err)
    }
    defer tr.Close()

    var mu sync.Mutex
    var received []string
    gotConnected := make(chan struct{}, 1)

    closer, err := tr.Subscribe("activity", "", "", transport.Subscriber{
        OnEvent: func(ev *wire.EventMsg) {
            mu.Lock()
            received = append(received, ev.EventType)
            mu.Unlock()
            if ev.EventType == "connected" {
                gotConnected <- struct{}{}
            }
        },
    })
    if err != nil {
        t.Fatalf("subscribe: %v", err)
    }
    defer closer()

    select {
    case <-gotConnected:
    case <-time.After(2 * time.Second):
        t.Fatal("timed out waiting for connected event")
    }

    bus.Publish(gateway.Event{Type: "tick", Data: []byte(`{}`)})

    deadline := time.Now().Add(2 * time.Second)
    for {
        mu.Lock()
        n := len(received)
        mu.Unlock()
        if n >= 2 {
            break
        }
        if time.Now().After(deadline) {
            t.Fatalf("received only %d events, want >= 2", n)
        }
        time.Sleep(10 * time.Millisecond)
    }
}

func TestTransportUploadEndToEnd(t *testing.T) {
    sink := uploadstore.New()
    srv := startTestGateway(t, gateway.Collaborators{Mux: demo.Mux{}, Uploads: sink}, "dave", "pw")

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    tr, err := transport.Connect(ctx, transport.Config{URL: wsURL(srv), Username: "dave", Password: []byte("pw")})
    if err != nil {
        t.Fatalf("connect: %v", err)
    }
    defer tr.Close()

    content := strings.Repeat("x", 150000)
    var lastProgress int64
    file, err := tr.Upload(ctx, "proj", "sess", "f.txt", "text/plain", strings.NewReader(content), int64(len(content)), transport.UploadOptions{
        ChunkSize: 50000,
        OnProgress: func(bytesReceived int64) {
            if bytesReceived < lastProgress {
                t.Errorf("progress went backwards: %d -> %d", lastProgress, bytesReceived)
            }
            lastProgress = bytesReceived
        },
    })
    if err != nil {
        t.Fatalf("upload: %v", err)
    }
    if len(file) == 0 {
        t.Fatal("expected non-empty file metadata")
    }
}
