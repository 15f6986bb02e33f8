// internal/gateway/channels.go
// The two subscription channels: session (tied to one agent
// process) and activity (the origin-wide event bus, forwarded unmodified).
// Both channel kinds are registered through internal/plugins so a
// collaborator package can add a third without touching handleSubscribe's
// dispatch table directly.
package gateway

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kzahel/yepanywhere/internal/plugins"
	"github.com/kzahel/yepanywhere/internal/wire"
)

var errNoSuchProcess = errors.New("no live process for sessionId")

// channelKind is the internal/plugins.Kind under which channel handlers
// register themselves, letting a collaborator package add a third channel
// without editing handleSubscribe's dispatch.
const channelKind plugins.Kind = "channel"

// ChannelPlugin is the contract a channel implementation registers under
// channelKind. Start mirrors startSessionChannel/startActivityChannel's
// signature so the built-in channels and any plugin-supplied one share one
// dispatch path in handleSubscribe.
type ChannelPlugin interface {
    plugins.Plugin
    Start(c *connection, msg *wire.SubscribeMsg) (cancel func(), err error)
}

type builtinChannel struct {
    name  string
    start func(c *connection, msg *wire.SubscribeMsg) (func(), error)
}

func (b *builtinChannel) Kind() plugins.Kind    { return channelKind }
func (b *builtinChannel) Name() string          { return b.name }
func (b *builtinChannel) Init() (any, error)    { return nil, nil }
func (b *builtinChannel) Start(c *connection, msg *wire.SubscribeMsg) (func(), error) {
    return b.start(c, msg)
}

func init() {
    plugins.Register(&builtinChannel{name: "session", start: (*connection).startSessionChannel})
    plugins.Register(&builtinChannel{name: "activity", start: (*connection).startActivityChannel})
}

// lookupChannel resolves a channel name to its registered handler.
func lookupChannel(name string) (ChannelPlugin, bool) {
    for _, p := range plugins.ByKind(channelKind) {
        if p.Name() == name {
            if ch, ok := p.(ChannelPlugin); ok {
                return ch, true
            }
        }
    }
    return nil, false
}

// eventIDCounter hands out the monotonically increasing decimal eventId
// string per subscription.
type eventIDCounter struct{ n uint64 }

func (e *eventIDCounter) next() string {
    return strconv.FormatUint(atomic.AddUint64(&e.n, 1), 10)
}

func (c *connection) emitEvent(subscriptionID, eventType string, ids *eventIDCounter, data []byte) {
    c.send(&wire.EventMsg{
        Type: wire.TypeEvent, SubscriptionID: subscriptionID, EventType: eventType,
        EventID: ids.next(), Data: data,
    })
}

// startSessionChannel implements the `session` channel.
func (c *connection) startSessionChannel(msg *wire.SubscribeMsg) (cancel func(), err error) {
    if msg.SessionID == "" {
        return nil, errors.New("session channel requires sessionId")
    }
    if c.gw.collaborators.Supervisor == nil {
        return nil, errNoSuchProcess
    }
    proc, ok := c.gw.collaborators.Supervisor.GetProcessForSession(msg.SessionID)
    if !ok {
        return nil, errNoSuchProcess
    }

    ids := &eventIDCounter{}
    subID := msg.SubscriptionID

    st := proc.State()
    c.emitEvent(subID, "connected", ids, wire.MustMarshal(struct {
        ProcessID      string                `json:"processId"`
        SessionID      string                `json:"sessionId"`
        State          string                `json:"state"`
        PermissionMode string                `json:"permissionMode"`
        ModeVersion    int                   `json:"modeVersion"`
        Provider       string                `json:"provider"`
        Model          string                `json:"model"`
        WaitingInput   *WaitingInputRequest  `json:"waitingInput,omitempty"`
    }{st.ProcessID, st.SessionID, st.State, st.PermissionMode, st.ModeVersion, st.Provider, st.Model, st.WaitingInput}))

    for _, e := range proc.MessageHistory() {
        c.emitEvent(subID, e.Type, ids, e.Data)
    }

    if partial := proc.StreamingContent(); partial != "" && c.gw.collaborators.Augmenter != nil {
        if html, augErr := c.gw.collaborators.Augmenter.Augment(partial); augErr == nil {
            c.emitEvent(subID, "pending", ids, wire.MustMarshal(struct {
                HTML string `json:"html"`
            }{html}))
        }
    }

    done := make(chan struct{})
    unsubscribeProc := proc.Subscribe(func(e Event) {
        select {
        case <-done:
            return
        default:
        }
        c.emitEvent(subID, e.Type, ids, e.Data)
    })

    heartbeat := c.gw.cfg.HeartbeatInterval
    if heartbeat == 0 {
        heartbeat = heartbeatDefault
    }
    go c.runHeartbeat(subID, ids, heartbeat, done)

    cancel = func() {
        close(done)
        unsubscribeProc()
        proc.ClearStreamingText(subID)
    }
    return cancel, nil
}

// startActivityChannel implements the `activity` channel.
func (c *connection) startActivityChannel(msg *wire.SubscribeMsg) (cancel func(), err error) {
    if c.gw.collaborators.Bus == nil {
        return nil, errors.New("activity channel unavailable")
    }
    ids := &eventIDCounter{}
    subID := msg.SubscriptionID

    c.emitEvent(subID, "connected", ids, wire.MustMarshal(struct{}{}))

    done := make(chan struct{})
    unsubscribeBus := c.gw.collaborators.Bus.Subscribe(func(e Event) {
        select {
        case <-done:
            return
        default:
        }
        c.emitEvent(subID, e.Type, ids, e.Data)
    })

    heartbeat := c.gw.cfg.HeartbeatInterval
    if heartbeat == 0 {
        heartbeat = heartbeatDefault
    }
    go c.runHeartbeat(subID, ids, heartbeat, done)

    cancel = func() {
        close(done)
        unsubscribeBus()
    }
    return cancel, nil
}

func (c *connection) runHeartbeat(subID string, ids *eventIDCounter, interval time.Duration, done chan struct{}) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-done:
            return
        case <-ticker.C:
            c.emitEvent(subID, "heartbeat", ids, wire.MustMarshal(struct{}{}))
        }
    }
}
