// internal/wire/frame.go
// Package wire implements the binary frame codec shared by the
// gateway (C3), broker pipe mode does NOT use this package (it forwards
// bytes verbatim, see internal/broker) and the client transport (C5).
//
// Wire frame: `[1 byte format][payload]`. WebSocket text frames are also
// accepted and treated as UTF-8 JSON for interoperability with the browser
// API; new code must emit binary frames.
package wire

import (
	"unicode/utf8"
)

// Format is the single leading byte of every WebSocket binary frame.
type Format byte

const (
    FormatJSON   Format = 0x01 // UTF-8 JSON
    FormatUpload Format = 0x02 // raw binary upload chunk (reserved for future use)
    FormatGzip   Format = 0x03 // gzip-compressed JSON (reserved)
)

// EncodeFrame prepends the format byte to payload.
func EncodeFrame(format Format, payload []byte) []byte {
    out := make([]byte, 1+len(payload))
    out[0] = byte(format)
    copy(out[1:], payload)
    return out
}

// DecodeFrame splits a raw WebSocket binary frame into its format byte and
// payload, validating  / §7.1.
func DecodeFrame(raw []byte) (Format, []byte, error) {
    if len(raw) < 1 {
        return 0, nil, newFrameError(KindUnknownFormat, nil)
    }
    format := Format(raw[0])
    payload := raw[1:]
    switch format {
    case FormatJSON, FormatUpload, FormatGzip:
        if format == FormatJSON && !utf8.Valid(payload) {
            return format, nil, newFrameError(KindInvalidUTF8, nil)
        }
        return format, payload, nil
    default:
        return format, nil, newFrameError(KindUnknownFormat, nil)
    }
}

// DecodeTextFrame treats a WebSocket text frame as UTF-8 JSON (format 0x01).
// Text frames never carry other formats.
func DecodeTextFrame(raw []byte) (Format, []byte, error) {
    if !utf8.Valid(raw) {
        return FormatJSON, nil, newFrameError(KindInvalidUTF8, nil)
    }
    return FormatJSON, raw, nil
}
