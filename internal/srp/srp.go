// internal/srp/srp.go
// Core SRP-6a arithmetic (RFC 5054), independent of the wire messages that
// drive the 4-message exchange (session.go). All hashing is SHA-256.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

func srpHash(parts ...[]byte) []byte {
    h := sha256.New()
    for _, p := range parts {
        h.Write(p)
    }
    return h.Sum(nil)
}

// GenerateSalt returns a 16-byte random salt.
func GenerateSalt() ([]byte, error) {
    salt := make([]byte, 16)
    if _, err := rand.Read(salt); err != nil {
        return nil, err
    }
    return salt, nil
}

// ComputeX derives the private exponent x = H(salt || H(identity || ":" ||
// password)) used to compute both the verifier and the client's session
// secret.
func ComputeX(salt, identity, password []byte) *big.Int {
    inner := srpHash(identity, []byte(":"), password)
    outer := srpHash(salt, inner)
    return new(big.Int).SetBytes(outer)
}

// ComputeVerifier returns v = g^x mod N, the value persisted server-side
// alongside the salt and returned by the remote access service's
// credential lookup.
func ComputeVerifier(group *Group, x *big.Int) *big.Int {
    return new(big.Int).Exp(group.G, x, group.N)
}

// randomExponent returns a random value in [1, N).
func randomExponent(group *Group) (*big.Int, error) {
    max := new(big.Int).Sub(group.N, big.NewInt(1))
    for {
        n, err := rand.Int(rand.Reader, max)
        if err != nil {
            return nil, err
        }
        n.Add(n, big.NewInt(1))
        if n.Sign() > 0 {
            return n, nil
        }
    }
}

// ServerEphemeral returns a private b and public B = k*v + g^b mod N.
func ServerEphemeral(group *Group, v *big.Int) (b, B *big.Int, err error) {
    b, err = randomExponent(group)
    if err != nil {
        return nil, nil, err
    }
    gb := new(big.Int).Exp(group.G, b, group.N)
    kv := new(big.Int).Mul(group.k, v)
    kv.Mod(kv, group.N)
    B = new(big.Int).Add(kv, gb)
    B.Mod(B, group.N)
    return b, B, nil
}

// ClientEphemeral returns a private a and public A = g^a mod N.
func ClientEphemeral(group *Group) (a, A *big.Int, err error) {
    a, err = randomExponent(group)
    if err != nil {
        return nil, nil, err
    }
    A = new(big.Int).Exp(group.G, a, group.N)
    return a, A, nil
}

// ComputeU derives the scrambling parameter u = H(PAD(A) || PAD(B)).
func ComputeU(group *Group, A, B *big.Int) *big.Int {
    h := srpHash(padToN(group.N, A), padToN(group.N, B))
    return new(big.Int).SetBytes(h)
}

// IsZeroModN reports whether v mod N == 0, used to reject A/B == 0 as RFC
// 5054 §2.5.4 mandates ("the host will abort the protocol" on this check).
func IsZeroModN(group *Group, v *big.Int) bool {
    m := new(big.Int).Mod(v, group.N)
    return m.Sign() == 0
}

// ClientPremasterSecret computes S = (B - k*g^x)^(a + u*x) mod N.
func ClientPremasterSecret(group *Group, x, u, a, B *big.Int) *big.Int {
    gx := new(big.Int).Exp(group.G, x, group.N)
    kgx := new(big.Int).Mul(group.k, gx)
    kgx.Mod(kgx, group.N)

    base := new(big.Int).Sub(B, kgx)
    base.Mod(base, group.N)

    ux := new(big.Int).Mul(u, x)
    exp := new(big.Int).Add(a, ux)

    return new(big.Int).Exp(base, exp, group.N)
}

// ServerPremasterSecret computes S = (A * v^u)^b mod N.
func ServerPremasterSecret(group *Group, A, v, u, b *big.Int) *big.Int {
    vu := new(big.Int).Exp(v, u, group.N)
    base := new(big.Int).Mul(A, vu)
    base.Mod(base, group.N)
    return new(big.Int).Exp(base, b, group.N)
}

// ComputeM1 derives the client proof
// M1 = H(H(N) xor H(g), H(identity), salt, A, B, S).
func ComputeM1(group *Group, identity, salt []byte, A, B, S *big.Int) []byte {
    hn := srpHash(padToN(group.N, group.N))
    hg := srpHash(padToN(group.N, group.G))
    xored := make([]byte, len(hn))
    for i := range hn {
        xored[i] = hn[i] ^ hg[i]
    }
    hi := srpHash(identity)
    return srpHash(xored, hi, salt, padToN(group.N, A), padToN(group.N, B), padToN(group.N, S))
}

// ComputeM2 derives the server proof M2 = H(A, M1, S).
func ComputeM2(group *Group, A *big.Int, M1 []byte, S *big.Int) []byte {
    return srpHash(padToN(group.N, A), M1, padToN(group.N, S))
}
