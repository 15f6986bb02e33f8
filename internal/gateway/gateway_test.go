package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kzahel/yepanywhere/internal/gateway/demo"
	"github.com/kzahel/yepanywhere/internal/gateway/uploadstore"
	"github.com/kzahel/yepanywhere/internal/srp"
	"github.com/kzahel/yepanywhere/internal/wire"
)

// fakeConn is an in-memory wire.Conn pipe for tests, avoiding a real network
// socket (keeps these tests fast and socket-free).
type fakeConn struct {
    in     chan wsFrame
    out    chan wsFrame
    closed chan struct{}
    once   sync.Once
}

type wsFrame struct {
    mt   int
    data []byte
}

func newFakePair() (a, b *fakeConn) {
    ab := make(chan wsFrame, 64)
    ba := make(chan wsFrame, 64)
    a = &fakeConn{in: ba, out: ab, closed: make(chan struct{})}
    b = &fakeConn{in: ab, out: ba, closed: make(chan struct{})}
    return a, b
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
    select {
    case f, ok := <-c.in:
        if !ok {
            return 0, nil, errors.New("fakeConn: closed")
        }
        return f.mt, f.data, nil
    case <-c.closed:
        return 0, nil, errors.New("fakeConn: closed")
    }
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
    select {
    case c.out <- wsFrame{mt, append([]byte(nil), data...)}:
        return nil
    case <-c.closed:
        return errors.New("fakeConn: closed")
    }
}

func (c *fakeConn) Close() error {
    c.once.Do(func() { close(c.closed) })
    return nil
}

// clientHandshake runs the full SRP exchange as the remote client would,
// returning a ready-to-use codec with the derived session key installed.
func clientHandshake(t *testing.T, conn *fakeConn, username, password string) *wire.Codec {
    t.Helper()
    codec := wire.NewCodec(conn)
    cs := srp.NewClientSession(srp.Group2048, username, []byte(password))

    if err := codec.WritePlaintextJSON(cs.Hello()); err != nil {
        t.Fatalf("send hello: %v", err)
    }

    raw, err := codec.ReadPlaintextJSON()
    if err != nil {
        t.Fatalf("read challenge: %v", err)
    }
    var challenge wire.SRPChallenge
    if err := json.Unmarshal(raw, &challenge); err != nil {
        t.Fatalf("unmarshal challenge: %v", err)
    }

    proof, err := cs.ComputeProof(&challenge)
    if err != nil {
        t.Fatalf("compute proof: %v", err)
    }
    if err := codec.WritePlaintextJSON(proof); err != nil {
        t.Fatalf("send proof: %v", err)
    }

    raw, err = codec.ReadPlaintextJSON()
    if err != nil {
        t.Fatalf("read verify: %v", err)
    }
    var verify wire.SRPVerify
    if err := json.Unmarshal(raw, &verify); err != nil {
        t.Fatalf("unmarshal verify: %v", err)
    }
    if err := cs.VerifyServer(&verify); err != nil {
        t.Fatalf("verify server: %v", err)
    }

    key := cs.SessionKey()
    codec.SetKey(&key)
    return codec
}

func newTestGateway(t *testing.T, username, password string, collaborators Collaborators) (*Gateway, *fakeConn) {
    t.Helper()
    creds, err := demo.NewCredentials(username, password)
    if err != nil {
        t.Fatalf("credentials: %v", err)
    }
    collaborators.Credentials = creds

    cfg := DefaultConfig()
    cfg.HeartbeatInterval = time.Hour // keep heartbeats out of the way of assertions
    gw := New(cfg, collaborators)

    clientConn, serverConn := newFakePair()
    go gw.Accept(serverConn)
    return gw, clientConn
}

func TestHappyRequest(t *testing.T) {
    _, clientConn := newTestGateway(t, "alice", "s3cret", Collaborators{Mux: demo.Mux{}})
    codec := clientHandshake(t, clientConn, "alice", "s3cret")

    if err := codec.WriteJSON(&wire.RequestMsg{Type: wire.TypeRequest, ID: "R1", Method: "GET", Path: "/health"}); err != nil {
        t.Fatalf("send request: %v", err)
    }
    raw, err := codec.ReadJSON()
    if err != nil {
        t.Fatalf("read response: %v", err)
    }
    var resp wire.ResponseMsg
    if err := json.Unmarshal(raw, &resp); err != nil {
        t.Fatalf("unmarshal response: %v", err)
    }
    if resp.ID != "R1" || resp.Status != 200 {
        t.Fatalf("response = %+v, want id=R1 status=200", resp)
    }
}

func TestSubscribeMissingSessionID(t *testing.T) {
    _, clientConn := newTestGateway(t, "bob", "hunter2", Collaborators{Mux: demo.Mux{}})
    codec := clientHandshake(t, clientConn, "bob", "hunter2")

    if err := codec.WriteJSON(&wire.SubscribeMsg{Type: wire.TypeSubscribe, SubscriptionID: "S1", Channel: "session"}); err != nil {
        t.Fatalf("send subscribe: %v", err)
    }
    raw, err := codec.ReadJSON()
    if err != nil {
        t.Fatalf("read response: %v", err)
    }
    var resp wire.ResponseMsg
    if err := json.Unmarshal(raw, &resp); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
    if resp.ID != "S1" || resp.Status != 400 {
        t.Fatalf("response = %+v, want id=S1 status=400", resp)
    }
}

func TestWrongPasswordNeverAuthenticates(t *testing.T) {
    _, clientConn := newTestGateway(t, "carol", "correct-password", Collaborators{Mux: demo.Mux{}})
    codec := wire.NewCodec(clientConn)
    cs := srp.NewClientSession(srp.Group2048, "carol", []byte("wrong-password"))

    _ = codec.WritePlaintextJSON(cs.Hello())
    raw, err := codec.ReadPlaintextJSON()
    if err != nil {
        t.Fatalf("read challenge: %v", err)
    }
    var challenge wire.SRPChallenge
    _ = json.Unmarshal(raw, &challenge)

    proof, err := cs.ComputeProof(&challenge)
    if err != nil {
        t.Fatalf("compute proof: %v", err)
    }
    _ = codec.WritePlaintextJSON(proof)

    raw, err = codec.ReadPlaintextJSON()
    if err != nil {
        t.Fatalf("read srp_error: %v", err)
    }
    var srpErr wire.SRPErrorMsg
    if err := json.Unmarshal(raw, &srpErr); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
    if srpErr.Type != wire.TypeSRPError || srpErr.Code != wire.SRPErrInvalidProof {
        t.Fatalf("got %+v, want srp_error/invalid_proof", srpErr)
    }
}

func TestChunkedUpload(t *testing.T) {
    sink := uploadstore.New()
    _, clientConn := newTestGateway(t, "dave", "pw", Collaborators{Mux: demo.Mux{}, Uploads: sink})
    codec := clientHandshake(t, clientConn, "dave", "pw")

    const size = 200000
    if err := codec.WriteJSON(&wire.UploadStartMsg{
        Type: wire.TypeUploadStart, UploadID: "U1", ProjectID: "p", SessionID: "s",
        Filename: "f.bin", Size: size, MimeType: "application/octet-stream",
    }); err != nil {
        t.Fatal(err)
    }
    raw, err := codec.ReadJSON()
    if err != nil {
        t.Fatal(err)
    }
    var progress wire.UploadProgressMsg
    _ = json.Unmarshal(raw, &progress)
    if progress.BytesReceived != 0 {
        t.Fatalf("initial progress = %d, want 0", progress.BytesReceived)
    }

    chunk := make([]byte, 100000)
    enc := base64.StdEncoding.EncodeToString(chunk)

    var lastBytesReceived int64
    for _, offset := range []int64{0, 100000} {
        if err := codec.WriteJSON(&wire.UploadChunkMsg{Type: wire.TypeUploadChunk, UploadID: "U1", Offset: offset, Data: enc}); err != nil {
            t.Fatal(err)
        }
        raw, err := codec.ReadJSON()
        if err != nil {
            t.Fatal(err)
        }
        var p wire.UploadProgressMsg
        _ = json.Unmarshal(raw, &p)
        if p.BytesReceived < lastBytesReceived {
            t.Fatalf("bytesReceived went backwards: %d -> %d", lastBytesReceived, p.BytesReceived)
        }
        lastBytesReceived = p.BytesReceived
    }
    if lastBytesReceived != size {
        t.Fatalf("final bytesReceived = %d, want %d", lastBytesReceived, size)
    }

    if err := codec.WriteJSON(&wire.UploadEndMsg{Type: wire.TypeUploadEnd, UploadID: "U1"}); err != nil {
        t.Fatal(err)
    }
    raw, err = codec.ReadJSON()
    if err != nil {
        t.Fatal(err)
    }
    var complete wire.UploadCompleteMsg
    if err := json.Unmarshal(raw, &complete); err != nil {
        t.Fatal(err)
    }
    if complete.Type != wire.TypeUploadComplete || complete.UploadID != "U1" {
        t.Fatalf("got %+v, want upload_complete/U1", complete)
    }
}

func TestIdempotentUnsubscribe(t *testing.T) {
    _, clientConn := newTestGateway(t, "erin", "pw", Collaborators{Mux: demo.Mux{}, Bus: demo.NewBus()})
    codec := clientHandshake(t, clientConn, "erin", "pw")

    if err := codec.WriteJSON(&wire.SubscribeMsg{Type: wire.TypeSubscribe, SubscriptionID: "S1", Channel: "activity"}); err != nil {
        t.Fatal(err)
    }
    raw, err := codec.ReadJSON() // connected event
    if err != nil {
        t.Fatal(err)
    }
    var ev wire.EventMsg
    _ = json.Unmarshal(raw, &ev)
    if ev.EventType != "connected" {
        t.Fatalf("first event = %q, want connected", ev.EventType)
    }

    if err := codec.WriteJSON(&wire.UnsubscribeMsg{Type: wire.TypeUnsubscribe, SubscriptionID: "S1"}); err != nil {
        t.Fatal(err)
    }
    if err := codec.WriteJSON(&wire.UnsubscribeMsg{Type: wire.TypeUnsubscribe, SubscriptionID: "S1"}); err != nil {
        t.Fatal(err) // second unsubscribe must be a harmless no-op
    }
}
