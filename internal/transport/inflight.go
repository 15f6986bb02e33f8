// internal/transport/inflight.go
// Bookkeeping for the three kinds of in-flight work a Transport tracks
// concurrently: requests awaiting a response, subscriptions awaiting
// events, uploads awaiting progress/completion. Guarded by one mutex with
// short critical sections, as the gateway's connection.go guards its own
// per-connection maps (there with one mutex per map).
package transport

import (
	"sync"

	"github.com/kzahel/yepanywhere/internal/wire"
)

type pendingRequest struct {
    resp chan *wire.ResponseMsg
}

type subscription struct {
    onEvent func(*wire.EventMsg)
    onClose func(error)
}

type pendingUpload struct {
    progress chan *wire.UploadProgressMsg
    complete chan *wire.UploadCompleteMsg
    failed   chan *wire.UploadErrorMsg
}

type inflight struct {
    mu            sync.Mutex
    requests      map[string]*pendingRequest
    subscriptions map[string]*subscription
    uploads       map[string]*pendingUpload
}

func newInflight() *inflight {
    return &inflight{
        requests:      make(map[string]*pendingRequest),
        subscriptions: make(map[string]*subscription),
        uploads:       make(map[string]*pendingUpload),
    }
}

func (f *inflight) addRequest(id string) *pendingRequest {
    p := &pendingRequest{resp: make(chan *wire.ResponseMsg, 1)}
    f.mu.Lock()
    f.requests[id] = p
    f.mu.Unlock()
    return p
}

func (f *inflight) takeRequest(id string) (*pendingRequest, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    p, ok := f.requests[id]
    if ok {
        delete(f.requests, id)
    }
    return p, ok
}

func (f *inflight) addSubscription(id string, s *subscription) {
    f.mu.Lock()
    f.subscriptions[id] = s
    f.mu.Unlock()
}

func (f *inflight) getSubscription(id string) (*subscription, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    s, ok := f.subscriptions[id]
    return s, ok
}

func (f *inflight) removeSubscription(id string) (*subscription, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    s, ok := f.subscriptions[id]
    if ok {
        delete(f.subscriptions, id)
    }
    return s, ok
}

func (f *inflight) addUpload(id string, u *pendingUpload) {
    f.mu.Lock()
    f.uploads[id] = u
    f.mu.Unlock()
}

func (f *inflight) takeUpload(id string) (*pendingUpload, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    u, ok := f.uploads[id]
    if ok {
        delete(f.uploads, id)
    }
    return u, ok
}

func (f *inflight) getUpload(id string) (*pendingUpload, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    u, ok := f.uploads[id]
    return u, ok
}

// closeAll fires every pending request/subscription/upload's terminal
// callback with err.
func (f *inflight) closeAll(err error) {
    f.mu.Lock()
    requests := f.requests
    f.requests = make(map[string]*pendingRequest)
    subs := f.subscriptions
    f.subscriptions = make(map[string]*subscription)
    uploads := f.uploads
    f.uploads = make(map[string]*pendingUpload)
    f.mu.Unlock()

    for _, p := range requests {
        close(p.resp)
    }
    for _, s := range subs {
        if s.onClose != nil {
            s.onClose(err)
        }
    }
    for _, u := range uploads {
        select {
        case u.failed <- &wire.UploadErrorMsg{Error: err.Error()}:
        default:
        }
    }
}
