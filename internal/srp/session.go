// internal/srp/session.go
// The 4-message SRP-6a state machine: hello -> challenge ->
// proof -> verify. Both sides start unauthenticated; any rejected proof or
// malformed message discards the in-progress session object and resets to
// unauthenticated rather than leaving partial state around.
package srp

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"math/big"

	"github.com/kzahel/yepanywhere/internal/wire"
)

// State is the session's position in the handshake.
type State int

const (
    StateUnauthenticated State = iota
    StateWaitingProof
    StateAuthenticated
)

var (
    ErrWrongState    = errors.New("srp: message received in wrong session state")
    ErrBadProof      = errors.New("srp: client proof does not match")
    ErrBadServerAuth = errors.New("srp: server proof does not match")
    ErrZeroPublicKey = errors.New("srp: A or B is 0 mod N")
    ErrMalformed     = errors.New("srp: malformed base64 field")
)

func encodeBig(n *big.Int) string {
    return base64.StdEncoding.EncodeToString(n.Bytes())
}

func decodeBig(s string) (*big.Int, error) {
    b, err := base64.StdEncoding.DecodeString(s)
    if err != nil {
        return nil, ErrMalformed
    }
    return new(big.Int).SetBytes(b), nil
}

func encodeBytes(b []byte) string {
    return base64.StdEncoding.EncodeToString(b)
}

func decodeBytes(s string) ([]byte, error) {
    b, err := base64.StdEncoding.DecodeString(s)
    if err != nil {
        return nil, ErrMalformed
    }
    return b, nil
}

// ServerSession holds one origin-side authentication attempt in progress.
// Credentials (salt, verifier) come from the remote access service's
// credential lookup.
type ServerSession struct {
    group *Group

    identity string
    salt     []byte
    verifier *big.Int

    b *big.Int
    B *big.Int
    A *big.Int

    state      State
    sessionKey [32]byte
}

// NewServerSession starts a server-side handshake for identity, using the
// salt and verifier returned by the remote access service's credential
// lookup.
func NewServerSession(group *Group, identity string, salt []byte, verifier *big.Int) *ServerSession {
    return &ServerSession{
        group:    group,
        identity: identity,
        salt:     salt,
        verifier: verifier,
        state:    StateUnauthenticated,
    }
}

// Challenge generates the server's ephemeral keypair and returns the
// srp_challenge message.
func (s *ServerSession) Challenge() (*wire.SRPChallenge, error) {
    b, B, err := ServerEphemeral(s.group, s.verifier)
    if err != nil {
        return nil, err
    }
    s.b, s.B = b, B
    s.state = StateWaitingProof
    return &wire.SRPChallenge{
        Type: wire.TypeSRPChallenge,
        Salt: encodeBytes(s.salt),
        B:    encodeBig(s.B),
    }, nil
}

// VerifyProof checks the client's srp_proof against the session's
// verifier/B and, on success, derives the session key and returns the
// srp_verify message carrying the server's proof M2. On failure the session
// resets to StateUnauthenticated.
func (s *ServerSession) VerifyProof(proof *wire.SRPProof) (*wire.SRPVerify, error) {
    if s.state != StateWaitingProof {
        return nil, ErrWrongState
    }

    A, err := decodeBig(proof.A)
    if err != nil {
        s.state = StateUnauthenticated
        return nil, err
    }
    M1, err := decodeBytes(proof.M1)
    if err != nil {
        s.state = StateUnauthenticated
        return nil, err
    }
    if IsZeroModN(s.group, A) {
        s.state = StateUnauthenticated
        return nil, ErrZeroPublicKey
    }
    s.A = A

    u := ComputeU(s.group, A, s.B)
    S := ServerPremasterSecret(s.group, A, s.verifier, u, s.b)

    expectedM1 := ComputeM1(s.group, []byte(s.identity), s.salt, A, s.B, S)
    if subtle.ConstantTimeCompare(expectedM1, M1) != 1 {
        s.state = StateUnauthenticated
        return nil, ErrBadProof
    }

    s.sessionKey = wire.SessionKey(S.Bytes())
    s.state = StateAuthenticated

    M2 := ComputeM2(s.group, A, M1, S)
    return &wire.SRPVerify{Type: wire.TypeSRPVerify, M2: encodeBytes(M2)}, nil
}

// State returns the session's current position in the handshake.
func (s *ServerSession) State() State { return s.state }

// SessionKey returns the derived secretbox key. Only valid once State() ==
// StateAuthenticated.
func (s *ServerSession) SessionKey() [32]byte { return s.sessionKey }

// ClientSession holds one client-side authentication attempt in progress.
type ClientSession struct {
    group    *Group
    identity string
    password []byte

    a, A *big.Int
    x    *big.Int
    salt []byte
    B    *big.Int
    S    *big.Int
    m1   []byte

    state      State
    sessionKey [32]byte
}

// NewClientSession starts a client-side handshake for identity/password.
func NewClientSession(group *Group, identity string, password []byte) *ClientSession {
    return &ClientSession{group: group, identity: identity, password: password, state: StateUnauthenticated}
}

// Hello returns the srp_hello message that opens the handshake.
func (c *ClientSession) Hello() *wire.SRPHello {
    c.state = StateWaitingProof
    return &wire.SRPHello{Type: wire.TypeSRPHello, Identity: c.identity}
}

// ComputeProof consumes the server's srp_challenge, derives the shared
// secret, and returns the srp_proof message carrying M1.
func (c *ClientSession) ComputeProof(challenge *wire.SRPChallenge) (*wire.SRPProof, error) {
    if c.state != StateWaitingProof {
        return nil, ErrWrongState
    }

    salt, err := decodeBytes(challenge.Salt)
    if err != nil {
        c.state = StateUnauthenticated
        return nil, err
    }
    B, err := decodeBig(challenge.B)
    if err != nil {
        c.state = StateUnauthenticated
        return nil, err
    }
    if IsZeroModN(c.group, B) {
        c.state = StateUnauthenticated
        return nil, ErrZeroPublicKey
    }
    c.salt, c.B = salt, B

    a, A, err := ClientEphemeral(c.group)
    if err != nil {
        return nil, err
    }
    c.a, c.A = a, A

    c.x = ComputeX(salt, []byte(c.identity), c.password)
    u := ComputeU(c.group, A, B)
    S := ClientPremasterSecret(c.group, c.x, u, a, B)
    c.S = S

    c.m1 = ComputeM1(c.group, []byte(c.identity), salt, A, B, S)
    c.sessionKey = wire.SessionKey(S.Bytes())

    return &wire.SRPProof{
        Type: wire.TypeSRPProof,
        A:    encodeBig(A),
        M1:   encodeBytes(c.m1),
    }, nil
}

// VerifyServer checks the server's srp_verify proof M2. On success the
// session becomes authenticated and SessionKey is usable; on failure the
// session resets to StateUnauthenticated and the connection must be
// abandoned (a spoofed or wrong-password server cannot be retried in place).
func (c *ClientSession) VerifyServer(verify *wire.SRPVerify) error {
    if c.state != StateWaitingProof {
        return ErrWrongState
    }
    M2, err := decodeBytes(verify.M2)
    if err != nil {
        c.state = StateUnauthenticated
        return err
    }

    expected := ComputeM2(c.group, c.A, c.m1, c.S)
    if subtle.ConstantTimeCompare(expected, M2) != 1 {
        c.state = StateUnauthenticated
        return ErrBadServerAuth
    }

    c.state = StateAuthenticated
    return nil
}

// State returns the session's current position in the handshake.
func (c *ClientSession) State() State { return c.state }

// SessionKey returns the derived secretbox key. Only valid once State() ==
// StateAuthenticated.
func (c *ClientSession) SessionKey() [32]byte { return c.sessionKey }
