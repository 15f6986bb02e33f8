// internal/wire/errors.go
// Error taxonomy for the binary frame codec. Parsing errors fall into
// exactly three kinds; callers (the gateway's per-connection dispatcher)
// log at WARN and drop the offending frame — never tear down the
// connection over a malformed message.
package wire

import "errors"

// Kind classifies a codec-level parsing failure.
type Kind string

const (
    KindUnknownFormat Kind = "UNKNOWN_FORMAT"
    KindInvalidUTF8   Kind = "INVALID_UTF8"
    KindInvalidJSON   Kind = "INVALID_JSON"
)

// FrameError wraps a Kind so callers can classify failures with errors.As
// without string matching.
type FrameError struct {
    Kind Kind
    Err  error
}

func (e *FrameError) Error() string {
    if e.Err != nil {
        return string(e.Kind) + ": " + e.Err.Error()
    }
    return string(e.Kind)
}

func (e *FrameError) Unwrap() error { return e.Err }

func newFrameError(kind Kind, err error) *FrameError {
    return &FrameError{Kind: kind, Err: err}
}

// Sentinel errors for the decrypt path: on MAC failure the frame
// is dropped silently, never surfaced to the remote peer.
var (
    ErrDecryptFailed    = errors.New("wire: secretbox open failed")
    ErrNonceSize        = errors.New("wire: nonce must be 24 bytes")
    ErrKeySize          = errors.New("wire: key must be 32 bytes")
    ErrNotEncrypted     = errors.New("wire: plaintext message while authenticated")
    ErrUnexpectedCipher = errors.New("wire: encrypted envelope before authentication")
)
