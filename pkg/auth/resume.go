// pkg/auth/resume.go
// Lightweight HMAC‑SHA256 JWT signer / verifier backing the gateway's SRP
// session-resumption mechanism. The implementation deliberately avoids
// advanced JWT conventions (kid, JWKs) to keep the dependency surface
// minimal.
//
// A resume token's subject is the SHA-256 hex digest of the secretbox
// session key it is bound to, not a username — this way a leaked token
// cannot be replayed against a session established with a different
// password-derived key, even for the same username.
//
// External dependency: github.com/golang-jwt/jwt/v5 (MIT).
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer produces short‑lived resume tokens bound to a session key.
type Signer struct {
    secret []byte
    issuer string
    ttl    time.Duration
    clock  func() time.Time // injection point for tests
}

// NewSigner returns a Signer with given secret, issuer claim and TTL.
func NewSigner(secret []byte, issuer string, ttl time.Duration) *Signer {
    if ttl <= 0 {
        ttl = 15 * time.Minute
    }
    return &Signer{secret: secret, issuer: issuer, ttl: ttl, clock: time.Now}
}

// KeyDigest returns the claim value a resume token is bound to for a given
// 32-byte secretbox session key.
func KeyDigest(sessionKey []byte) string {
    sum := sha256.Sum256(sessionKey)
    return hex.EncodeToString(sum[:])
}

// Claims returns standard claims for a new resume token bound to sessionKey.
func (s *Signer) Claims(username string, sessionKey []byte, extra map[string]any) jwt.MapClaims {
    now := s.clock()
    claims := jwt.MapClaims{
        "iss":  s.issuer,
        "sub":  KeyDigest(sessionKey),
        "user": username,
        "iat":  now.Unix(),
        "exp":  now.Add(s.ttl).Unix(),
    }
    for k, v := range extra {
        claims[k] = v
    }
    return claims
}

// Sign produces a JWT string.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
    token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return token.SignedString(s.secret)
}

// Verifier validates HMAC‑signed resume tokens.
type Verifier struct {
    secret []byte
    issuer string
    clock  func() time.Time
}

// NewVerifier constructs a verifier with expected issuer.
func NewVerifier(secret []byte, issuer string) *Verifier {
    return &Verifier{secret: secret, issuer: issuer, clock: time.Now}
}

var (
    ErrInvalidToken   = errors.New("invalid token")
    ErrExpiredToken   = errors.New("token expired")
    ErrIssuerMismatch = errors.New("issuer mismatch")
    ErrKeyMismatch    = errors.New("resume token not bound to this session key")
)

// ParseAndVerify parses tokenStr and returns claims after validating signature,
// expiry and issuer.
func (v *Verifier) ParseAndVerify(tokenStr string) (jwt.MapClaims, error) {
    token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
        if t.Method != jwt.SigningMethodHS256 {
            return nil, ErrInvalidToken
        }
        return v.secret, nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return nil, ErrExpiredToken
        }
        return nil, ErrInvalidToken
    }

    claims, ok := token.Claims.(jwt.MapClaims)
    if !ok || !token.Valid {
        return nil, ErrInvalidToken
    }
    if v.issuer != "" && claims["iss"] != v.issuer {
        return nil, ErrIssuerMismatch
    }
    return claims, nil
}

// VerifyForKey parses tokenStr and confirms it is bound to sessionKey,
// returning the username claim on success.
func (v *Verifier) VerifyForKey(tokenStr string, sessionKey []byte) (string, error) {
    claims, err := v.ParseAndVerify(tokenStr)
    if err != nil {
        return "", err
    }
    sub, _ := claims["sub"].(string)
    if sub != KeyDigest(sessionKey) {
        return "", ErrKeyMismatch
    }
    user, _ := claims["user"].(string)
    return user, nil
}
