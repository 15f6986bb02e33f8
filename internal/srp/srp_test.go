package srp

import (
	"math/big"
	"testing"

	"github.com/kzahel/yepanywhere/internal/wire"
)

func registerUser(t *testing.T, identity, password string) (salt []byte, verifier *big.Int) {
    t.Helper()
    s, err := GenerateSalt()
    if err != nil {
        t.Fatalf("salt: %v", err)
    }
    x := ComputeX(s, []byte(identity), []byte(password))
    v := ComputeVerifier(Group2048, x)
    return s, v
}

func runHandshake(t *testing.T, identity, serverPassword, clientPassword string) (client *ClientSession, server *ServerSession, err error) {
    t.Helper()
    salt, verifier := registerUser(t, identity, serverPassword)

    server = NewServerSession(Group2048, identity, salt, verifier)
    client = NewClientSession(Group2048, identity, []byte(clientPassword))

    client.Hello()
    challenge, err := server.Challenge()
    if err != nil {
        return client, server, err
    }

    proof, err := client.ComputeProof(challenge)
    if err != nil {
        return client, server, err
    }

    verify, err := server.VerifyProof(proof)
    if err != nil {
        return client, server, err
    }

    err = client.VerifyServer(verify)
    return client, server, err
}

func TestHandshakeSucceedsWithCorrectPassword(t *testing.T) {
    client, server, err := runHandshake(t, "alice", "correct horse battery staple", "correct horse battery staple")
    if err != nil {
        t.Fatalf("handshake: %v", err)
    }
    if client.State() != StateAuthenticated || server.State() != StateAuthenticated {
        t.Fatalf("want both authenticated, got client=%v server=%v", client.State(), server.State())
    }
    if client.SessionKey() != server.SessionKey() {
        t.Fatal("client/server derived different session keys")
    }
}

func TestHandshakeFailsWithWrongPassword(t *testing.T) {
    _, server, err := runHandshake(t, "alice", "correct horse battery staple", "wrong password")
    if err == nil {
        t.Fatal("expected handshake failure with wrong password")
    }
    if server.State() != StateUnauthenticated {
        t.Fatalf("server state after bad proof = %v, want StateUnauthenticated", server.State())
    }
}

func TestVerifyProofRejectsWrongState(t *testing.T) {
    salt, verifier := registerUser(t, "bob", "hunter2")
    server := NewServerSession(Group2048, "bob", salt, verifier)
    _, err := server.VerifyProof(&wire.SRPProof{Type: wire.TypeSRPProof})
    if err != ErrWrongState {
        t.Fatalf("err = %v, want ErrWrongState", err)
    }
}

func TestChallengeRejectsZeroB(t *testing.T) {
    client := NewClientSession(Group2048, "carol", []byte("pw"))
    client.Hello()
    _, err := client.ComputeProof(&wire.SRPChallenge{
        Type: wire.TypeSRPChallenge,
        Salt: encodeBytes([]byte("salt1234567890ab")),
        B:    encodeBig(big.NewInt(0)),
    })
    if err != ErrZeroPublicKey {
        t.Fatalf("err = %v, want ErrZeroPublicKey", err)
    }
    if client.State() != StateUnauthenticated {
        t.Fatalf("state = %v, want StateUnauthenticated after malformed challenge", client.State())
    }
}

func TestEachHandshakeUsesFreshEphemeralKeys(t *testing.T) {
    salt, verifier := registerUser(t, "dave", "swordfish")

    serverA := NewServerSession(Group2048, "dave", salt, verifier)
    challengeA, err := serverA.Challenge()
    if err != nil {
        t.Fatal(err)
    }
    serverB := NewServerSession(Group2048, "dave", salt, verifier)
    challengeB, err := serverB.Challenge()
    if err != nil {
        t.Fatal(err)
    }
    if challengeA.B == challengeB.B {
        t.Fatal("two independent challenges produced the same B; ephemeral key reused")
    }
}
