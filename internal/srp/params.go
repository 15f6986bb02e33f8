// internal/srp/params.go
// The RFC 5054 2048-bit SRP group: the 2048-bit safe prime of RFC 5054
// Appendix A together with generator g=2.
package srp

import "math/big"

// rfc5054N2048Hex is the 2048-bit safe prime, 512 hex digits / 2048 bits.
const rfc5054N2048Hex = "" +
    "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
    "A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
    "E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
    "55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
    "CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
    "544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
    "AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
    "94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// Group holds the SRP prime modulus N and generator g for one negotiated
// parameter set.
type Group struct {
    N *big.Int
    G *big.Int

    k *big.Int // SRP-6a multiplier, computed once in NewGroup
}

// NewGroup derives a Group (and its multiplier k) from N and g.
func NewGroup(n, g *big.Int) *Group {
    grp := &Group{N: n, G: g}
    grp.k = new(big.Int).SetBytes(srpHash(padToN(n, n), padToN(n, g)))
    return grp
}

// Group2048 is the RFC 5054 2048-bit group used by this implementation.
var Group2048 = NewGroup(mustParseHex(rfc5054N2048Hex), big.NewInt(2))

func mustParseHex(s string) *big.Int {
    n, ok := new(big.Int).SetString(s, 16)
    if !ok {
        panic("srp: invalid hex constant")
    }
    return n
}

// padToN left-pads v's big-endian bytes to the byte length of n (SRP "PAD"
// operation, RFC 5054 §2.5.4), needed so hash inputs line up regardless of
// leading-zero byte loss in big.Int encoding.
func padToN(n *big.Int, v *big.Int) []byte {
    size := (n.BitLen() + 7) / 8
    b := v.Bytes()
    if len(b) >= size {
        return b
    }
    out := make([]byte, size)
    copy(out[size-len(b):], b)
    return out
}
