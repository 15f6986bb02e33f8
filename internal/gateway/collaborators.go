// internal/gateway/collaborators.go
// The gateway's only coupling to the rest of an origin process is through
// these small interfaces. Real implementations — project/session CRUD, the
// agent supervisor, the markdown augmenter — live outside this module;
// internal/gateway/demo provides minimal in-memory stand-ins for the
// standalone binary and for tests.
package gateway

import (
	"context"
	"encoding/json"
	"math/big"
)

// HTTPRequest is the synthesized local request a `request` message turns
// into before reaching LocalMux, which routes it to the internal HTTP mux.
type HTTPRequest struct {
    Method  string
    Path    string
    Headers map[string]string
    Body    json.RawMessage
}

// HTTPResponse is what LocalMux hands back.
type HTTPResponse struct {
    Status  int
    Headers map[string]string
    Body    json.RawMessage
}

// LocalMux is the in-process HTTP handler the gateway routes `request`
// messages to. No network hop is involved.
type LocalMux interface {
    Fetch(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// Event is an opaque typed record carried by the event bus and by process
// listeners.
type Event struct {
    Type string
    Data json.RawMessage
}

// WaitingInputRequest describes a process paused for user input, surfaced
// in the session channel's initial `connected` event.
type WaitingInputRequest struct {
    Prompt string `json:"prompt"`
}

// ProcessState is a snapshot of a running agent process used to build the
// session channel's `connected` event.
type ProcessState struct {
    ProcessID     string
    SessionID     string
    State         string
    PermissionMode string
    ModeVersion   int
    Provider      string
    Model         string
    WaitingInput  *WaitingInputRequest
}

// Process is the per-session handle the session channel subscribes to.
type Process interface {
    State() ProcessState
    MessageHistory() []Event
    StreamingContent() string
    Subscribe(listener func(Event)) (unsubscribe func())
    AccumulateStreamingText(subscriptionID, delta string)
    ClearStreamingText(subscriptionID string)
}

// ProcessSupervisor looks up the running process backing a sessionId.
type ProcessSupervisor interface {
    GetProcessForSession(sessionID string) (Process, bool)
}

// EventBus is the origin-wide stream the `activity` channel forwards
// unmodified.
type EventBus interface {
    Subscribe(listener func(Event)) (unsubscribe func())
}

// MarkdownAugmenter turns raw assistant text deltas into incremental
// pre-rendered HTML, used for the session channel's streaming catch-up.
type MarkdownAugmenter interface {
    Augment(text string) (html string, err error)
}

// UploadMeta describes an upload_start request.
type UploadMeta struct {
    ProjectID string
    SessionID string
    Filename  string
    MimeType  string
    Size      int64
}

// UploadSink is the external file-upload backend. Implementations must be
// safe for concurrent use across uploads; a single upload is only ever
// driven by its owning connection's dispatch loop.
type UploadSink interface {
    StartUpload(ctx context.Context, meta UploadMeta) (uploadID string, err error)
    WriteChunk(uploadID string, offset int64, data []byte) (bytesReceived int64, err error)
    CompleteUpload(uploadID string) (file json.RawMessage, err error)
    CancelUpload(uploadID string)
}

// CredentialStore is the "Remote access service" collaborator:
// whether remote access is enabled at all, the single configured username,
// and its SRP credentials.
type CredentialStore interface {
    IsEnabled() bool
    Username() string
    GetCredentials() (salt []byte, verifier *big.Int, ok bool)
}

// Collaborators bundles every external dependency the gateway needs for one
// running origin. A nil MarkdownAugmenter or ProcessSupervisor is tolerated
// (the session channel degrades to "no live process" / "no catch-up").
type Collaborators struct {
    Mux        LocalMux
    Supervisor ProcessSupervisor
    Bus        EventBus
    Uploads    UploadSink
    Credentials CredentialStore
    Augmenter  MarkdownAugmenter
}
