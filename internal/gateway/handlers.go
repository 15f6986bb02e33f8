// internal/gateway/handlers.go
// Message handlers dispatched from connection.go, one per incoming message
// type. Every handler runs to completion before the next message is read.
package gateway

import (
	"context"
	"encoding/base64"

	"github.com/kzahel/yepanywhere/internal/metrics"
	"github.com/kzahel/yepanywhere/internal/wire"
)

// --- SRP handshake ----------------------------------------------

func (c *connection) handleSRPHello(msg *wire.SRPHello) {
    if msg.Identity != c.gw.collaborators.Credentials.Username() {
        c.sendPlaintext(&wire.SRPErrorMsg{Type: wire.TypeSRPError, Code: wire.SRPErrInvalidIdentity})
        metrics.GatewayAuthFailuresTotal.WithLabelValues("invalid_identity").Inc()
        _ = c.codec.Close()
        return
    }
    srv, err := c.gw.auth.newServerSRPSession()
    if err != nil {
        c.sendPlaintext(&wire.SRPErrorMsg{Type: wire.TypeSRPError, Code: wire.SRPErrServerError})
        _ = c.codec.Close()
        return
    }
    challenge, err := srv.Challenge()
    if err != nil {
        c.sendPlaintext(&wire.SRPErrorMsg{Type: wire.TypeSRPError, Code: wire.SRPErrServerError})
        _ = c.codec.Close()
        return
    }
    c.srpSrv = srv
    c.state = connSRPWaitingProof
    c.sendPlaintext(challenge)
}

func (c *connection) handleSRPProof(msg *wire.SRPProof) {
    if c.srpSrv == nil {
        c.state = connUnauthenticated
        return
    }
    verify, err := c.srpSrv.VerifyProof(msg)
    if err != nil {
        c.sendPlaintext(&wire.SRPErrorMsg{Type: wire.TypeSRPError, Code: wire.SRPErrInvalidProof})
        metrics.GatewayAuthFailuresTotal.WithLabelValues("invalid_proof").Inc()
        c.state = connUnauthenticated
        c.srpSrv = nil
        return
    }
    c.sendPlaintext(verify)
    c.authenticate(c.gw.collaborators.Credentials.Username(), c.srpSrv.SessionKey())
    c.srpSrv = nil
}

func (c *connection) handleResume(msg *wire.ResumeMsg) {
    // The token's subject is a session-key digest. The auth manager maps it
    // back to the key it recorded when it issued the token, so the socket is
    // authenticated with that key without running SRP again. A token whose
    // digest was never issued here, or was revoked by Logout, is rejected.
    username, key, err := c.gw.auth.resumeSession(msg.Token)
    if err != nil {
        c.sendPlaintext(&wire.ResumeErrorMsg{Type: wire.TypeResumeError, Message: "invalid or expired token"})
        return
    }
    c.sendPlaintext(&wire.ResumeOKMsg{Type: wire.TypeResumeOK})
    c.authenticate(username, key)
}

// --- Requests ---------------------------------------------------

func (c *connection) handleRequest(msg *wire.RequestMsg) {
    metrics.GatewayRequestsTotal.WithLabelValues(msg.Method).Inc()

    if c.gw.collaborators.Mux == nil {
        c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.ID, Status: 500,
            Body: wire.MustMarshal(wire.ErrorBody{Error: "no local handler configured"})})
        return
    }

    ctx, span := c.gw.startSpan(context.Background(), "gateway.request", msg.ID)
    defer span.End()

    headers := msg.Headers
    if headers == nil {
        headers = map[string]string{}
    }
    headers["X-Yep-Anywhere"] = "true"
    headers["X-Ws-Relay"] = "true"

    resp, err := c.gw.collaborators.Mux.Fetch(ctx, &HTTPRequest{
        Method: msg.Method, Path: msg.Path, Headers: headers, Body: msg.Body,
    })
    if err != nil {
        c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.ID, Status: 500,
            Body: wire.MustMarshal(wire.ErrorBody{Error: "Internal server error"})})
        return
    }
    c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.ID, Status: resp.Status,
        Headers: resp.Headers, Body: resp.Body})
}

// --- Subscriptions -----------------------------------------------------

func (c *connection) handleSubscribe(msg *wire.SubscribeMsg) {
    c.subsMu.Lock()
    _, dup := c.subs[msg.SubscriptionID]
    c.subsMu.Unlock()
    if dup {
        c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.SubscriptionID, Status: 400,
            Body: wire.MustMarshal(wire.ErrorBody{Error: "duplicate subscriptionId"})})
        return
    }

    _, span := c.gw.startSpan(context.Background(), "gateway.subscribe", msg.SubscriptionID)
    defer span.End()

    ch, ok := lookupChannel(msg.Channel)
    if !ok {
        c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.SubscriptionID, Status: 400,
            Body: wire.MustMarshal(wire.ErrorBody{Error: "unknown channel"})})
        return
    }
    cancel, err := ch.Start(c, msg)
    if err != nil {
        status := 400
        if err == errNoSuchProcess {
            status = 404
        }
        c.send(&wire.ResponseMsg{Type: wire.TypeResponse, ID: msg.SubscriptionID, Status: status,
            Body: wire.MustMarshal(wire.ErrorBody{Error: err.Error()})})
        return
    }

    c.subsMu.Lock()
    c.subs[msg.SubscriptionID] = &subscriptionState{id: msg.SubscriptionID, channel: msg.Channel, cancel: cancel}
    c.subOrd = append(c.subOrd, msg.SubscriptionID)
    c.subsMu.Unlock()
    metrics.GatewaySubscriptionsActive.Inc()
}

func (c *connection) handleUnsubscribe(msg *wire.UnsubscribeMsg) {
    c.subsMu.Lock()
    sub, ok := c.subs[msg.SubscriptionID]
    if ok {
        delete(c.subs, msg.SubscriptionID)
        for i, id := range c.subOrd {
            if id == msg.SubscriptionID {
                c.subOrd = append(c.subOrd[:i], c.subOrd[i+1:]...)
                break
            }
        }
    }
    c.subsMu.Unlock()
    if !ok {
        return // idempotent unsubscribe
    }
    if sub.cancel != nil {
        sub.cancel()
    }
    metrics.GatewaySubscriptionsActive.Dec()
}

// --- Uploads -----------------------------------------------------

const uploadProgressBoundary = 64 * 1024

func (c *connection) handleUploadStart(msg *wire.UploadStartMsg) {
    if c.gw.collaborators.Uploads == nil {
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: "uploads disabled"})
        return
    }
    serverID, err := c.gw.collaborators.Uploads.StartUpload(context.Background(), UploadMeta{
        ProjectID: msg.ProjectID, SessionID: msg.SessionID, Filename: msg.Filename,
        MimeType: msg.MimeType, Size: msg.Size,
    })
    if err != nil {
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: err.Error()})
        return
    }

    c.uploadsMu.Lock()
    c.uploads[msg.UploadID] = &uploadState{uploadID: serverID, expectedSize: msg.Size}
    c.uploadOrd = append(c.uploadOrd, msg.UploadID)
    c.uploadsMu.Unlock()
    metrics.GatewayUploadsActive.Inc()

    c.send(&wire.UploadProgressMsg{Type: wire.TypeUploadProgress, UploadID: msg.UploadID, BytesReceived: 0})
}

func (c *connection) handleUploadChunk(msg *wire.UploadChunkMsg) {
    c.uploadsMu.Lock()
    up, ok := c.uploads[msg.UploadID]
    c.uploadsMu.Unlock()
    if !ok {
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: "unknown uploadId"})
        return
    }
    if msg.Offset != up.bytesReceived {
        metrics.GatewayUploadErrorsTotal.WithLabelValues("offset_mismatch").Inc()
        c.failUpload(msg.UploadID, up, "offset mismatch")
        return
    }
    data, err := base64.StdEncoding.DecodeString(msg.Data)
    if err != nil {
        metrics.GatewayUploadErrorsTotal.WithLabelValues("invalid_base64").Inc()
        c.failUpload(msg.UploadID, up, "invalid base64 chunk")
        return
    }

    n, err := c.gw.collaborators.Uploads.WriteChunk(up.uploadID, msg.Offset, data)
    if err != nil {
        metrics.GatewayUploadErrorsTotal.WithLabelValues("sink_write").Inc()
        c.failUpload(msg.UploadID, up, "sink write failed")
        return
    }
    up.bytesReceived = n

    if up.bytesReceived-up.lastReport >= uploadProgressBoundary || up.bytesReceived == up.expectedSize {
        up.lastReport = up.bytesReceived
        c.send(&wire.UploadProgressMsg{Type: wire.TypeUploadProgress, UploadID: msg.UploadID, BytesReceived: up.bytesReceived})
    }
}

func (c *connection) handleUploadEnd(msg *wire.UploadEndMsg) {
    c.uploadsMu.Lock()
    up, ok := c.uploads[msg.UploadID]
    if ok {
        delete(c.uploads, msg.UploadID)
        for i, id := range c.uploadOrd {
            if id == msg.UploadID {
                c.uploadOrd = append(c.uploadOrd[:i], c.uploadOrd[i+1:]...)
                break
            }
        }
    }
    c.uploadsMu.Unlock()
    if !ok {
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: "unknown uploadId"})
        return
    }
    if up.bytesReceived != up.expectedSize {
        c.gw.collaborators.Uploads.CancelUpload(up.uploadID)
        metrics.GatewayUploadErrorsTotal.WithLabelValues("incomplete").Inc()
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: "upload_end before all bytes received"})
        metrics.GatewayUploadsActive.Dec()
        return
    }

    file, err := c.gw.collaborators.Uploads.CompleteUpload(up.uploadID)
    metrics.GatewayUploadsActive.Dec()
    if err != nil {
        metrics.GatewayUploadErrorsTotal.WithLabelValues("complete_failed").Inc()
        c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: msg.UploadID, Error: err.Error()})
        return
    }
    c.send(&wire.UploadCompleteMsg{Type: wire.TypeUploadComplete, UploadID: msg.UploadID, File: file})
}

func (c *connection) failUpload(clientID string, up *uploadState, reason string) {
    c.uploadsMu.Lock()
    delete(c.uploads, clientID)
    for i, id := range c.uploadOrd {
        if id == clientID {
            c.uploadOrd = append(c.uploadOrd[:i], c.uploadOrd[i+1:]...)
            break
        }
    }
    c.uploadsMu.Unlock()
    c.gw.collaborators.Uploads.CancelUpload(up.uploadID)
    metrics.GatewayUploadsActive.Dec()
    c.send(&wire.UploadErrorMsg{Type: wire.TypeUploadError, UploadID: clientID, Error: reason})
}
