// internal/wire/envelope.go
// The encrypted envelope: once a connection is authenticated with a
// non-empty session key, every JSON payload is itself a two-field
// object {"type":"encrypted","nonce":<base64 24B>,"ciphertext":<base64>}.
// Encryption is NaCl secretbox (XSalsa20-Poly1305): a 24-byte CSPRNG nonce
// per message (never reused) and a 32-byte key. Ciphertexts include the
// 16-byte Poly1305 tag.
//
// Adapted from the pairing-handshake crypto pattern used elsewhere in the
// retrieved pack (webwormhole's dial.go: nacl/secretbox sealed JSON blobs
// exchanged through a relay) — same primitive, same "derive key, seal JSON,
// base64 the two fields" shape.
package wire

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
    nonceSize = 24
    keySize   = 32
)

// SessionKey derives the 32-byte secretbox key from the raw SRP session
// value S: the first 32 bytes of SHA-512(S).
func SessionKey(srpS []byte) [32]byte {
    sum := sha512.Sum512(srpS)
    var key [32]byte
    copy(key[:], sum[:keySize])
    return key
}

// encryptedEnvelope is the wire shape of an `encrypted` message.
type encryptedEnvelope struct {
    Type       string `json:"type"`
    Nonce      string `json:"nonce"`
    Ciphertext string `json:"ciphertext"`
}

// Encrypt seals plaintext (a serialized application message) under key and
// returns the JSON bytes of the encrypted envelope.
func Encrypt(plaintext []byte, key [32]byte) ([]byte, error) {
    var nonce [nonceSize]byte
    if _, err := rand.Read(nonce[:]); err != nil {
        return nil, err
    }
    sealed := secretbox.Seal(nil, plaintext, &nonce, &key)
    env := encryptedEnvelope{
        Type:       "encrypted",
        Nonce:      base64.StdEncoding.EncodeToString(nonce[:]),
        Ciphertext: base64.StdEncoding.EncodeToString(sealed),
    }
    return json.Marshal(env)
}

// Decrypt opens an encrypted-envelope JSON payload. On MAC failure it
// returns ErrDecryptFailed and the caller must drop the frame silently —
// the failure mode must never be distinguishable to the peer.
func Decrypt(envelopeJSON []byte, key [32]byte) ([]byte, error) {
    var env encryptedEnvelope
    if err := json.Unmarshal(envelopeJSON, &env); err != nil {
        return nil, newFrameError(KindInvalidJSON, err)
    }
    nonceBytes, err := base64.StdEncoding.DecodeString(env.Nonce)
    if err != nil {
        return nil, ErrDecryptFailed
    }
    if len(nonceBytes) != nonceSize {
        return nil, ErrNonceSize
    }
    cipherBytes, err := base64.StdEncoding.DecodeString(env.Ciphertext)
    if err != nil {
        return nil, ErrDecryptFailed
    }
    var nonce [nonceSize]byte
    copy(nonce[:], nonceBytes)

    plain, ok := secretbox.Open(nil, cipherBytes, &nonce, &key)
    if !ok {
        return nil, ErrDecryptFailed
    }
    return plain, nil
}

// IsEncryptedEnvelope sniffs whether a JSON payload is an {"type":"encrypted"}
// wrapper without fully decoding it, so the dispatcher can route plaintext
// vs. ciphertext without double-unmarshalling the common case.
func IsEncryptedEnvelope(payload []byte) bool {
    var probe struct {
        Type string `json:"type"`
    }
    if err := json.Unmarshal(payload, &probe); err != nil {
        return false
    }
    return probe.Type == "encrypted"
}
