// internal/wire/messages.go
// The exhaustive JSON tagged-union message vocabulary. All message
// types are discriminated by a top-level "type" field;  they are
// modeled as plain Go structs matched by a switch on that discriminator
// (the gateway's connection.go and the transport's client.go), rather than
// a runtime-dispatched class hierarchy.
package wire

import "encoding/json"

// Type is the discriminator carried by every application message.
type Type string

const (
    // SRP handshake (plaintext, format 0x01).
    TypeSRPHello     Type = "srp_hello"
    TypeSRPChallenge Type = "srp_challenge"
    TypeSRPProof     Type = "srp_proof"
    TypeSRPVerify    Type = "srp_verify"
    TypeSRPError     Type = "srp_error"

    // Session resumption.
    TypeResume      Type = "resume"
    TypeResumeOK    Type = "resume_ok"
    TypeResumeError Type = "resume_error"

    // Client -> gateway.
    TypeRequest     Type = "request"
    TypeSubscribe   Type = "subscribe"
    TypeUnsubscribe Type = "unsubscribe"
    TypeUploadStart Type = "upload_start"
    TypeUploadChunk Type = "upload_chunk"
    TypeUploadEnd   Type = "upload_end"

    // Gateway -> client.
    TypeResponse       Type = "response"
    TypeEvent          Type = "event"
    TypeUploadProgress Type = "upload_progress"
    TypeUploadComplete Type = "upload_complete"
    TypeUploadError    Type = "upload_error"

    // Encrypted envelope, handled by envelope.go; listed here so the whole
    // vocabulary is in one place.
    TypeEncrypted Type = "encrypted"
)

// Envelope peeks at the discriminator without committing to a concrete type.
type Envelope struct {
    Type Type `json:"type"`
}

// --- SRP handshake messages -------------------------------------

type SRPHello struct {
    Type     Type   `json:"type"`
    Identity string `json:"identity"`
}

type SRPChallenge struct {
    Type  Type   `json:"type"`
    Salt  string `json:"salt"` // base64
    B     string `json:"B"`    // base64 big-endian
}

type SRPProof struct {
    Type Type   `json:"type"`
    A    string `json:"A"`  // base64 big-endian
    M1   string `json:"M1"` // base64
}

type SRPVerify struct {
    Type Type   `json:"type"`
    M2   string `json:"M2"` // base64
}

type SRPErrorCode string

const (
    SRPErrInvalidIdentity SRPErrorCode = "invalid_identity"
    SRPErrInvalidProof    SRPErrorCode = "invalid_proof"
    SRPErrServerError     SRPErrorCode = "server_error"
)

type SRPErrorMsg struct {
    Type    Type         `json:"type"`
    Code    SRPErrorCode `json:"code"`
    Message string       `json:"message,omitempty"`
}

// --- Session resumption ------------------------------------------------------

type ResumeMsg struct {
    Type  Type   `json:"type"`
    Token string `json:"token"`
}

type ResumeOKMsg struct {
    Type Type `json:"type"`
}

type ResumeErrorMsg struct {
    Type    Type   `json:"type"`
    Message string `json:"message,omitempty"`
}

// --- Client -> gateway --------------------------------------------------

type RequestMsg struct {
    Type    Type              `json:"type"`
    ID      string            `json:"id"`
    Method  string            `json:"method"`
    Path    string            `json:"path"`
    Headers map[string]string `json:"headers,omitempty"`
    Body    json.RawMessage   `json:"body,omitempty"`
}

type SubscribeMsg struct {
    Type           Type   `json:"type"`
    SubscriptionID string `json:"subscriptionId"`
    Channel        string `json:"channel"`
    SessionID      string `json:"sessionId,omitempty"`
    LastEventID    string `json:"lastEventId,omitempty"`
}

type UnsubscribeMsg struct {
    Type           Type   `json:"type"`
    SubscriptionID string `json:"subscriptionId"`
}

type UploadStartMsg struct {
    Type      Type   `json:"type"`
    UploadID  string `json:"uploadId"`
    ProjectID string `json:"projectId"`
    SessionID string `json:"sessionId"`
    Filename  string `json:"filename"`
    Size      int64  `json:"size"`
    MimeType  string `json:"mimeType"`
}

type UploadChunkMsg struct {
    Type     Type   `json:"type"`
    UploadID string `json:"uploadId"`
    Offset   int64  `json:"offset"`
    Data     string `json:"data"` // base64
}

type UploadEndMsg struct {
    Type     Type   `json:"type"`
    UploadID string `json:"uploadId"`
}

// --- Gateway -> client --------------------------------------------------

type ResponseMsg struct {
    Type    Type              `json:"type"`
    ID      string            `json:"id"`
    Status  int               `json:"status"`
    Headers map[string]string `json:"headers,omitempty"`
    Body    json.RawMessage   `json:"body,omitempty"`
}

type EventMsg struct {
    Type           Type            `json:"type"`
    SubscriptionID string          `json:"subscriptionId"`
    EventType      string          `json:"eventType"`
    EventID        string          `json:"eventId,omitempty"`
    Data           json.RawMessage `json:"data"`
}

type UploadProgressMsg struct {
    Type          Type  `json:"type"`
    UploadID      string `json:"uploadId"`
    BytesReceived int64  `json:"bytesReceived"`
}

type UploadCompleteMsg struct {
    Type     Type            `json:"type"`
    UploadID string          `json:"uploadId"`
    File     json.RawMessage `json:"file"`
}

type UploadErrorMsg struct {
    Type     Type   `json:"type"`
    UploadID string `json:"uploadId"`
    Error    string `json:"error"`
}

// ErrorBody is the conventional shape of a response/upload_error error
// payload: {"error": "..."}.
type ErrorBody struct {
    Error string `json:"error"`
}

func MustMarshal(v any) json.RawMessage {
    b, err := json.Marshal(v)
    if err != nil {
        panic(err)
    }
    return b
}
