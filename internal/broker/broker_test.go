package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestBroker(t *testing.T) (*Broker, *httptest.Server) {
    t.Helper()
    store, err := OpenSQLite(":memory:")
    if err != nil {
        t.Fatalf("open store: %v", err)
    }
    t.Cleanup(func() { store.Close() })

    cfg := DefaultConfig()
    b := New(cfg, store)

    mux := http.NewServeMux()
    mux.HandleFunc("/ws", b.handleWebSocket)
    srv := httptest.NewServer(mux)
    t.Cleanup(srv.Close)
    return b, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
    t.Helper()
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    if err != nil {
        t.Fatalf("dial: %v", err)
    }
    return conn
}

func readTyped(t *testing.T, conn *websocket.Conn, out any) {
    t.Helper()
    _, raw, err := conn.ReadMessage()
    if err != nil {
        t.Fatalf("read: %v", err)
    }
    if err := json.Unmarshal(raw, out); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
    t.Helper()
    raw, err := json.Marshal(v)
    if err != nil {
        t.Fatalf("marshal: %v", err)
    }
    if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
        t.Fatalf("write: %v", err)
    }
}

func TestServerRegisterAcceptsNewUsername(t *testing.T) {
    _, srv := newTestBroker(t)
    conn := dial(t, srv)
    defer conn.Close()

    sendJSON(t, conn, &ServerRegisterMsg{Type: TypeServerRegister, Username: "alice", InstallID: "install-1"})
    var reply ServerRegisteredMsg
    readTyped(t, conn, &reply)
    if reply.Type != TypeServerRegistered {
        t.Fatalf("got %+v, want server_registered", reply)
    }
}

func TestServerRegisterRejectsInvalidUsername(t *testing.T) {
    _, srv := newTestBroker(t)
    conn := dial(t, srv)
    defer conn.Close()

    sendJSON(t, conn, &ServerRegisterMsg{Type: TypeServerRegister, Username: "", InstallID: "install-1"})
    var reply ServerRejectedMsg
    readTyped(t, conn, &reply)
    if reply.Reason != "invalid_username" {
        t.Fatalf("got %+v, want invalid_username", reply)
    }
}

func TestServerRegisterRejectsDifferentInstall(t *testing.T) {
    _, srv := newTestBroker(t)

    first := dial(t, srv)
    defer first.Close()
    sendJSON(t, first, &ServerRegisterMsg{Type: TypeServerRegister, Username: "bob", InstallID: "install-1"})
    var ok1 ServerRegisteredMsg
    readTyped(t, first, &ok1)

    second := dial(t, srv)
    defer second.Close()
    sendJSON(t, second, &ServerRegisterMsg{Type: TypeServerRegister, Username: "bob", InstallID: "install-2"})
    var reply ServerRejectedMsg
    readTyped(t, second, &reply)
    if reply.Reason != "username_taken" {
        t.Fatalf("got %+v, want username_taken", reply)
    }
}

func TestClientConnectUnknownUsername(t *testing.T) {
    _, srv := newTestBroker(t)
    conn := dial(t, srv)
    defer conn.Close()

    sendJSON(t, conn, &ClientConnectMsg{Type: TypeClientConnect, Username: "nobody"})
    var reply ClientErrorMsg
    readTyped(t, conn, &reply)
    if reply.Reason != "unknown_username" {
        t.Fatalf("got %+v, want unknown_username", reply)
    }
}

func TestClientConnectServerOffline(t *testing.T) {
    b, srv := newTestBroker(t)
    // A prior registration exists in the store but no live waiting slot.
    if err := b.store.Upsert(context.Background(), Registration{
        Username: "carol", InstallID: "install-1", FirstSeenAt: time.Now(), LastSeenAt: time.Now(),
    }); err != nil {
        t.Fatalf("seed: %v", err)
    }

    conn := dial(t, srv)
    defer conn.Close()
    sendJSON(t, conn, &ClientConnectMsg{Type: TypeClientConnect, Username: "carol"})
    var reply ClientErrorMsg
    readTyped(t, conn, &reply)
    if reply.Reason != "server_offline" {
        t.Fatalf("got %+v, want server_offline", reply)
    }
}

func TestPairingAndPipeFidelity(t *testing.T) {
    b, srv := newTestBroker(t)

    origin := dial(t, srv)
    defer origin.Close()
    sendJSON(t, origin, &ServerRegisterMsg{Type: TypeServerRegister, Username: "dave", InstallID: "install-1"})
    var registered ServerRegisteredMsg
    readTyped(t, origin, &registered)

    client := dial(t, srv)
    defer client.Close()
    sendJSON(t, client, &ClientConnectMsg{Type: TypeClientConnect, Username: "dave"})
    var connected ClientConnectedMsg
    readTyped(t, client, &connected)
    if connected.Type != TypeClientConnected {
        t.Fatalf("got %+v, want client_connected", connected)
    }

    deadline := time.Now().Add(2 * time.Second)
    for b.PairCount() == 0 && time.Now().Before(deadline) {
        time.Sleep(10 * time.Millisecond)
    }
    if b.PairCount() != 1 {
        t.Fatalf("PairCount = %d, want 1", b.PairCount())
    }
    if b.WaitingCount() != 0 {
        t.Fatalf("WaitingCount = %d, want 0", b.WaitingCount())
    }

    payload := []byte(`{"hello":"from-client"}`)
    if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
        t.Fatalf("client write: %v", err)
    }
    _, got, err := origin.ReadMessage()
    if err != nil {
        t.Fatalf("origin read: %v", err)
    }
    if string(got) != string(payload) {
        t.Fatalf("origin received %q, want %q", got, payload)
    }

    reply := []byte(`{"reply":"from-origin"}`)
    if err := origin.WriteMessage(websocket.TextMessage, reply); err != nil {
        t.Fatalf("origin write: %v", err)
    }
    _, got, err = client.ReadMessage()
    if err != nil {
        t.Fatalf("client read: %v", err)
    }
    if string(got) != string(reply) {
        t.Fatalf("client received %q, want %q", got, reply)
    }
}

func TestPairTeardownOnClose(t *testing.T) {
    b, srv := newTestBroker(t)

    origin := dial(t, srv)
    sendJSON(t, origin, &ServerRegisterMsg{Type: TypeServerRegister, Username: "erin", InstallID: "install-1"})
    var registered ServerRegisteredMsg
    readTyped(t, origin, &registered)

    client := dial(t, srv)
    defer client.Close()
    sendJSON(t, client, &ClientConnectMsg{Type: TypeClientConnect, Username: "erin"})
    var connected ClientConnectedMsg
    readTyped(t, client, &connected)

    deadline := time.Now().Add(2 * time.Second)
    for b.PairCount() == 0 && time.Now().Before(deadline) {
        time.Sleep(10 * time.Millisecond)
    }

    origin.Close()

    deadline = time.Now().Add(2 * time.Second)
    for b.PairCount() != 0 && time.Now().Before(deadline) {
        time.Sleep(10 * time.Millisecond)
    }
    if b.PairCount() != 0 {
        t.Fatalf("PairCount = %d after origin close, want 0", b.PairCount())
    }
}
