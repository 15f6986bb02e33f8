// internal/transport/upload.go
// Chunked upload: upload_start, wait for the first upload_progress, then
// stream the file in offset-tagged chunks, retrying a single transient
// chunk-write failure with util.Backoff before surfacing upload_error to
// the caller.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kzahel/yepanywhere/internal/util"
	"github.com/kzahel/yepanywhere/internal/wire"
)

// UploadOptions configures a single upload() call.
type UploadOptions struct {
    ChunkSize int // default DefaultChunkSize
    OnProgress func(bytesReceived int64)
}

// Upload implements its upload(projectId, sessionId, file, options)
// → file-metadata. file must support io.Reader; size is the total byte
// count the caller asserts the reader will yield.
func (t *Transport) Upload(ctx context.Context, projectID, sessionID, filename, mimeType string, file io.Reader, size int64, opts UploadOptions) (json.RawMessage, error) {
    if opts.ChunkSize <= 0 {
        opts.ChunkSize = DefaultChunkSize
    }

    uploadID := uuid.NewString()
    pending := &pendingUpload{
        progress: make(chan *wire.UploadProgressMsg, 1),
        complete: make(chan *wire.UploadCompleteMsg, 1),
        failed:   make(chan *wire.UploadErrorMsg, 1),
    }
    t.inflight.addUpload(uploadID, pending)

    if err := t.codec.WriteJSON(&wire.UploadStartMsg{
        Type: wire.TypeUploadStart, UploadID: uploadID, ProjectID: projectID, SessionID: sessionID,
        Filename: filename, Size: size, MimeType: mimeType,
    }); err != nil {
        t.inflight.takeUpload(uploadID)
        return nil, err
    }

    if err := t.awaitFirstProgress(ctx, pending); err != nil {
        t.inflight.takeUpload(uploadID)
        return nil, err
    }

    var offset int64
    buf := make([]byte, opts.ChunkSize)
    for {
        n, rerr := file.Read(buf)
        if n > 0 {
            if err := t.writeChunkWithRetry(uploadID, offset, buf[:n]); err != nil {
                t.inflight.takeUpload(uploadID)
                return nil, err
            }
            offset += int64(n)
        }
        if rerr == io.EOF {
            break
        }
        if rerr != nil {
            t.inflight.takeUpload(uploadID)
            return nil, rerr
        }
    }

    if err := t.codec.WriteJSON(&wire.UploadEndMsg{Type: wire.TypeUploadEnd, UploadID: uploadID}); err != nil {
        t.inflight.takeUpload(uploadID)
        return nil, err
    }

    return t.awaitCompletion(ctx, uploadID, pending, opts)
}

func (t *Transport) awaitFirstProgress(ctx context.Context, pending *pendingUpload) error {
    select {
    case <-pending.progress:
        return nil
    case msg := <-pending.failed:
        return errors.New("transport: upload error: " + msg.Error)
    case <-ctx.Done():
        return ctx.Err()
    case <-t.closed:
        return ErrConnectionLost
    }
}

// writeChunkWithRetry writes one chunk, retrying once after a short jittered
// backoff on a transient write error (util.Backoff, chosen over
// cenkalti/backoff here to avoid pulling the heavier dependency into the
// consumer-side transport for a single retry).
func (t *Transport) writeChunkWithRetry(uploadID string, offset int64, data []byte) error {
    msg := &wire.UploadChunkMsg{
        Type: wire.TypeUploadChunk, UploadID: uploadID, Offset: offset,
        Data: base64.StdEncoding.EncodeToString(data),
    }
    err := t.codec.WriteJSON(msg)
    if err == nil {
        return nil
    }

    bo := util.NewBackoff()
    select {
    case <-time.After(bo.Next()):
    case <-t.closed:
        return ErrConnectionLost
    }
    return t.codec.WriteJSON(msg)
}

func (t *Transport) awaitCompletion(ctx context.Context, uploadID string, pending *pendingUpload, opts UploadOptions) (json.RawMessage, error) {
    for {
        select {
        case progress := <-pending.progress:
            if opts.OnProgress != nil {
                opts.OnProgress(progress.BytesReceived)
            }
        case complete := <-pending.complete:
            return complete.File, nil
        case failed := <-pending.failed:
            return nil, fmt.Errorf("transport: upload %s failed: %s", uploadID, failed.Error)
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-t.closed:
            return nil, ErrConnectionLost
        }
    }
}
