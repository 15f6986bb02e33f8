// internal/alerts/sinks/webhook.go
// Generic webhook sink: POSTs {rule, msg, ts} JSON whenever an alert fires,
// retrying transient failures with the dependency-free util.Backoff.
package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/util"
)

// WebhookSink posts {rule, msg, ts} JSON to URL.
type WebhookSink struct {
    URL        string
    Timeout    time.Duration
    MaxRetries int
}

// NewWebhookSink returns a sink with defaults (5s timeout, 5 attempts).
func NewWebhookSink(url string) *WebhookSink {
    return &WebhookSink{URL: url, Timeout: 5 * time.Second, MaxRetries: 5}
}

// Notify implements alerts.Sink, off-loading the POST to a goroutine so the
// engine's Evaluate call never blocks on network I/O.
func (s *WebhookSink) Notify(ruleName, msg string) {
    if s.URL == "" {
        logging.Sugar().Warn("webhook sink configured without URL")
        return
    }
    go s.doPost(ruleName, msg)
}

func (s *WebhookSink) doPost(rule, msg string) {
    payload := map[string]any{"rule": rule, "msg": msg, "ts": time.Now().Unix()}
    body, _ := json.Marshal(payload)

    client := &http.Client{Timeout: s.Timeout}
    backoff := util.NewBackoff()

    for attempt := 1; attempt <= s.MaxRetries; attempt++ {
        ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
        req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
        req.Header.Set("Content-Type", "application/json")

        resp, err := client.Do(req)
        cancel()
        if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
            _ = resp.Body.Close()
            return
        }
        if err == nil {
            _ = resp.Body.Close()
        }
        logging.Logger().Warn("webhook notify failed", zap.String("rule", rule), zap.Int("attempt", attempt), zap.Error(err))
        if attempt == s.MaxRetries {
            break
        }
        time.Sleep(backoff.Next())
    }
}
