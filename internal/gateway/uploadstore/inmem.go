// internal/gateway/uploadstore/inmem.go
// In-memory UploadSink: startUpload, writeChunk, completeUpload, and
// cancelUpload backed by a mutex-guarded buffer that accumulates one
// upload's bytes until upload_end, then hands back the file's JSON metadata
// (filename, mimeType, size). The bytes themselves are not returned.
package uploadstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/kzahel/yepanywhere/internal/gateway"
	"github.com/kzahel/yepanywhere/internal/util"
)

var ErrUnknownUpload = errors.New("uploadstore: unknown upload id")

type pendingUpload struct {
    meta gateway.UploadMeta
    buf  []byte
}

// InMem is a single-process UploadSink keyed by server-generated ulids.
// Safe for concurrent use across uploads; a single upload is only ever
// driven by its owning gateway connection.
type InMem struct {
    mu      sync.Mutex
    pending map[string]*pendingUpload
}

// New returns a ready-to-use in-memory upload sink.
func New() *InMem {
    return &InMem{pending: make(map[string]*pendingUpload)}
}

func (s *InMem) StartUpload(_ context.Context, meta gateway.UploadMeta) (string, error) {
    id := util.MustNew()
    s.mu.Lock()
    s.pending[id] = &pendingUpload{meta: meta, buf: make([]byte, 0, meta.Size)}
    s.mu.Unlock()
    return id, nil
}

func (s *InMem) WriteChunk(uploadID string, offset int64, data []byte) (int64, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    up, ok := s.pending[uploadID]
    if !ok {
        return 0, ErrUnknownUpload
    }
    if offset != int64(len(up.buf)) {
        return 0, errors.New("uploadstore: offset does not match accumulated length")
    }
    up.buf = append(up.buf, data...)
    return int64(len(up.buf)), nil
}

func (s *InMem) CompleteUpload(uploadID string) (json.RawMessage, error) {
    s.mu.Lock()
    up, ok := s.pending[uploadID]
    if ok {
        delete(s.pending, uploadID)
    }
    s.mu.Unlock()
    if !ok {
        return nil, ErrUnknownUpload
    }
    // Only metadata is returned; size is the length of the accumulated bytes.
    file := append([]byte(nil), up.buf...)
    return json.Marshal(struct {
        Filename string `json:"filename"`
        MimeType string `json:"mimeType"`
        Size     int    `json:"size"`
    }{up.meta.Filename, up.meta.MimeType, len(file)})
}

func (s *InMem) CancelUpload(uploadID string) {
    s.mu.Lock()
    delete(s.pending, uploadID)
    s.mu.Unlock()
}
