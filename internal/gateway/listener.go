// internal/gateway/listener.go
// HTTP listener exposing:
//   - /ws       – the WebSocket endpoint remote clients connect to
//   - /metrics  – optional Prometheus scrape endpoint
//   - /healthz  – trivial liveness probe
//
// Upgrades each incoming connection with gorilla/websocket and hands the raw
// socket to Gateway.Accept, which owns it for the connection's lifetime.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/metrics"
	"go.uber.org/zap"
)

var wsUpgrader = websocket.Upgrader{
    ReadBufferSize:  4096,
    WriteBufferSize: 4096,
    CheckOrigin:     func(r *http.Request) bool { return true },
}

// StartHTTP starts an HTTP server in its own goroutine and returns it so the
// caller can shut it down.
func (g *Gateway) StartHTTP() *http.Server {
    mux := http.NewServeMux()
    mux.HandleFunc("/ws", g.handleWebSocket)
    mux.HandleFunc("/healthz", g.handleHealthz)
    if g.cfg.EnableMetrics {
        metrics.Register()
        mux.Handle("/metrics", promhttp.Handler())
    }

    readTimeout := g.cfg.ReadTimeout
    if readTimeout == 0 {
        readTimeout = 5 * time.Second
    }
    writeTimeout := g.cfg.WriteTimeout
    if writeTimeout == 0 {
        writeTimeout = 10 * time.Second
    }

    srv := &http.Server{
        Addr:         g.cfg.ListenAddr,
        Handler:      mux,
        ReadTimeout:  readTimeout,
        WriteTimeout: writeTimeout,
    }
    go func() {
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            logging.Logger().Warn("gateway http listener error", zap.Error(err))
        }
    }()
    logging.Logger().Info("gateway http listener started", zap.String("addr", g.cfg.ListenAddr))
    return srv
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
    conn, err := wsUpgrader.Upgrade(w, r, nil)
    if err != nil {
        logging.Logger().Warn("ws upgrade", zap.Error(err))
        return
    }
    g.Accept(conn)
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write([]byte(`{"status":"ok"}`))
}
