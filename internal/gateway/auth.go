// internal/gateway/auth.go
// SRP dispatch plus the resume-token path. A JWT binds a resume token's
// subject claim to a session-key digest so a resumed connection ends up
// with exactly the key a full SRP exchange would have derived.
package gateway

import (
	"sync"

	"github.com/kzahel/yepanywhere/internal/srp"
	"github.com/kzahel/yepanywhere/pkg/auth"
)

// issuedSession records the sessionKey a resume token's digest refers to.
// Resume tokens are stateful on the server: the digest alone
// cannot be inverted back to a key, so the gateway must remember which key
// it handed out for each issued token.
type issuedSession struct {
    username   string
    sessionKey [32]byte
}

// authManager owns resume-token issuance/verification and the logout
// revocation set for one gateway.
type authManager struct {
    creds CredentialStore

    signer   *auth.Signer
    verifier *auth.Verifier

    mu      sync.Mutex
    issued  map[string]issuedSession // KeyDigest(sessionKey) -> session
    revoked map[string]struct{}      // KeyDigest(sessionKey) -> revoked
}

func newAuthManager(creds CredentialStore, cfg Config) *authManager {
    a := &authManager{
        creds:   creds,
        issued:  make(map[string]issuedSession),
        revoked: make(map[string]struct{}),
    }
    if len(cfg.JWTSecret) > 0 {
        a.signer = auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionKeyLifetime)
        a.verifier = auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
    }
    return a
}

// resumeEnabled reports whether the gateway was configured with a JWT
// secret at all; without one, resume tokens can be neither issued nor
// accepted.
func (a *authManager) resumeEnabled() bool { return a.signer != nil }

// issueResumeToken signs a token binding username to sessionKey's digest
// and remembers the mapping so a later resume can recover sessionKey.
func (a *authManager) issueResumeToken(username string, sessionKey [32]byte) (string, error) {
    claims := a.signer.Claims(username, sessionKey[:], nil)
    token, err := a.signer.Sign(claims)
    if err != nil {
        return "", err
    }
    digest := auth.KeyDigest(sessionKey[:])
    a.mu.Lock()
    a.issued[digest] = issuedSession{username: username, sessionKey: sessionKey}
    a.mu.Unlock()
    return token, nil
}

// resumeSession validates token, checks it hasn't been revoked by a prior
// logout, and returns the username and sessionKey it was issued for.
func (a *authManager) resumeSession(token string) (username string, sessionKey [32]byte, err error) {
    if a.verifier == nil {
        return "", sessionKey, auth.ErrInvalidToken
    }
    claims, err := a.verifier.ParseAndVerify(token)
    if err != nil {
        return "", sessionKey, err
    }
    digest, _ := claims["sub"].(string)

    a.mu.Lock()
    _, revoked := a.revoked[digest]
    session, known := a.issued[digest]
    a.mu.Unlock()

    if revoked || !known {
        return "", sessionKey, auth.ErrKeyMismatch
    }
    return session.username, session.sessionKey, nil
}

// revoke marks sessionKey's digest as logged out; any still-valid JWT bound
// to it is rejected from this point on even though it has not expired.
func (a *authManager) revoke(sessionKey [32]byte) {
    digest := auth.KeyDigest(sessionKey[:])
    a.mu.Lock()
    a.revoked[digest] = struct{}{}
    delete(a.issued, digest)
    a.mu.Unlock()
}

// newServerSRPSession starts a server-side SRP handshake for the
// configured username, using credentials from the CredentialStore.
func (a *authManager) newServerSRPSession() (*srp.ServerSession, error) {
    salt, verifier, ok := a.creds.GetCredentials()
    if !ok {
        return nil, errNoCredentials
    }
    return srp.NewServerSession(srp.Group2048, a.creds.Username(), salt, verifier), nil
}

var errNoCredentials = srpNoCredentialsError{}

type srpNoCredentialsError struct{}

func (srpNoCredentialsError) Error() string { return "gateway: no SRP credentials configured" }
