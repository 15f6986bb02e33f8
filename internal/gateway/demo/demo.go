// Package demo provides minimal in-memory collaborator implementations
// (LocalMux, ProcessSupervisor, EventBus, CredentialStore) used by the
// standalone cmd/yep-gateway binary and by internal/gateway's tests. They
// are NOT meant to replace the real origin collaborators (project/session
// CRUD, the agent process supervisor, the markdown augmenter), which stay
// external to this module.
package demo

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/kzahel/yepanywhere/internal/gateway"
	"github.com/kzahel/yepanywhere/internal/srp"
)

// Mux is a trivial LocalMux answering /health and /api/version (404 for any
// other path), enough to exercise a happy-path request end to end.
type Mux struct{}

func (Mux) Fetch(_ context.Context, req *gateway.HTTPRequest) (*gateway.HTTPResponse, error) {
    switch req.Path {
    case "/health":
        return &gateway.HTTPResponse{Status: 200, Body: json.RawMessage(`{"status":"ok"}`)}, nil
    case "/api/version":
        return &gateway.HTTPResponse{Status: 200, Body: json.RawMessage(`{"version":"dev"}`)}, nil
    default:
        return &gateway.HTTPResponse{Status: 404, Body: json.RawMessage(`{"error":"not found"}`)}, nil
    }
}

// Process is a stand-in for a running agent process. Its state is fixed at
// construction; its history and streaming text change through Publish,
// AccumulateStreamingText and ClearStreamingText.
type Process struct {
    mu      sync.Mutex
    state   gateway.ProcessState
    history []gateway.Event
    streaming string

    listeners map[int]func(gateway.Event)
    nextID    int
}

func NewProcess(state gateway.ProcessState) *Process {
    return &Process{state: state, listeners: make(map[int]func(gateway.Event))}
}

func (p *Process) State() gateway.ProcessState { return p.state }
func (p *Process) MessageHistory() []gateway.Event {
    p.mu.Lock()
    defer p.mu.Unlock()
    return append([]gateway.Event(nil), p.history...)
}
func (p *Process) StreamingContent() string {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.streaming
}
func (p *Process) Subscribe(listener func(gateway.Event)) func() {
    p.mu.Lock()
    id := p.nextID
    p.nextID++
    p.listeners[id] = listener
    p.mu.Unlock()
    return func() {
        p.mu.Lock()
        delete(p.listeners, id)
        p.mu.Unlock()
    }
}
func (p *Process) AccumulateStreamingText(_, delta string) {
    p.mu.Lock()
    p.streaming += delta
    p.mu.Unlock()
}
func (p *Process) ClearStreamingText(_ string) {
    p.mu.Lock()
    p.streaming = ""
    p.mu.Unlock()
}

// Publish delivers an event to every current subscriber, for use by tests
// driving the session channel.
func (p *Process) Publish(e gateway.Event) {
    p.mu.Lock()
    p.history = append(p.history, e)
    listeners := make([]func(gateway.Event), 0, len(p.listeners))
    for _, l := range p.listeners {
        listeners = append(listeners, l)
    }
    p.mu.Unlock()
    for _, l := range listeners {
        l(e)
    }
}

// Supervisor is a fixed-membership ProcessSupervisor: sessions are
// registered up front rather than spawned on demand.
type Supervisor struct {
    mu       sync.RWMutex
    sessions map[string]*Process
}

func NewSupervisor() *Supervisor { return &Supervisor{sessions: make(map[string]*Process)} }

func (s *Supervisor) Register(sessionID string, p *Process) {
    s.mu.Lock()
    s.sessions[sessionID] = p
    s.mu.Unlock()
}

func (s *Supervisor) GetProcessForSession(sessionID string) (gateway.Process, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    p, ok := s.sessions[sessionID]
    return p, ok
}

// Bus is a simple fan-out EventBus.
type Bus struct {
    mu        sync.Mutex
    listeners map[int]func(gateway.Event)
    nextID    int
}

func NewBus() *Bus { return &Bus{listeners: make(map[int]func(gateway.Event))} }

func (b *Bus) Subscribe(listener func(gateway.Event)) func() {
    b.mu.Lock()
    id := b.nextID
    b.nextID++
    b.listeners[id] = listener
    b.mu.Unlock()
    return func() {
        b.mu.Lock()
        delete(b.listeners, id)
        b.mu.Unlock()
    }
}

func (b *Bus) Publish(e gateway.Event) {
    b.mu.Lock()
    listeners := make([]func(gateway.Event), 0, len(b.listeners))
    for _, l := range b.listeners {
        listeners = append(listeners, l)
    }
    b.mu.Unlock()
    for _, l := range listeners {
        l(e)
    }
}

// Credentials is a fixed single-user CredentialStore backed by an SRP
// verifier computed at construction time from a plaintext password — demo
// and test use only; real deployments persist {salt, verifier} and never
// hold the plaintext password server-side.
type Credentials struct {
    enabled  bool
    username string
    salt     []byte
    verifier *big.Int
}

// NewCredentials derives {salt, verifier} for username/password using the
// same SRP-6a math the gateway's handshake uses to verify it.
func NewCredentials(username, password string) (*Credentials, error) {
    salt, err := srp.GenerateSalt()
    if err != nil {
        return nil, err
    }
    x := srp.ComputeX(salt, []byte(username), []byte(password))
    v := srp.ComputeVerifier(srp.Group2048, x)
    return &Credentials{enabled: true, username: username, salt: salt, verifier: v}, nil
}

func (c *Credentials) IsEnabled() bool    { return c.enabled }
func (c *Credentials) Username() string   { return c.username }
func (c *Credentials) GetCredentials() ([]byte, *big.Int, bool) {
    if !c.enabled {
        return nil, nil, false
    }
    return c.salt, c.verifier, true
}
