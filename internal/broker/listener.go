// internal/broker/listener.go
// HTTP listener exposing /ws (broker protocol + pipe mode), /healthz
// (uptime, waiting count, pair count), and optionally /metrics.
package broker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/metrics"
)

var wsUpgrader = websocket.Upgrader{
    ReadBufferSize:  4096,
    WriteBufferSize: 4096,
    CheckOrigin:     func(r *http.Request) bool { return true },
}

func (b *Broker) StartHTTP() *http.Server {
    mux := http.NewServeMux()
    mux.HandleFunc("/ws", b.handleWebSocket)
    mux.HandleFunc("/healthz", b.handleHealthz)
    if b.cfg.EnableMetrics {
        metrics.Register()
        mux.Handle("/metrics", promhttp.Handler())
    }

    readTimeout := b.cfg.ReadTimeout
    if readTimeout == 0 {
        readTimeout = 5 * time.Second
    }
    writeTimeout := b.cfg.WriteTimeout
    if writeTimeout == 0 {
        writeTimeout = 10 * time.Second
    }

    srv := &http.Server{
        Addr:         b.cfg.ListenAddr,
        Handler:      mux,
        ReadTimeout:  readTimeout,
        WriteTimeout: writeTimeout,
    }
    go func() {
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            logging.Sugar().Warnw("broker http listener error", "err", err)
        }
    }()
    logging.Sugar().Infow("broker http listener started", "addr", b.cfg.ListenAddr)
    return srv
}

func (b *Broker) handleWebSocket(w http.ResponseWriter, r *http.Request) {
    conn, err := wsUpgrader.Upgrade(w, r, nil)
    if err != nil {
        logging.Sugar().Warnw("broker ws upgrade", "err", err)
        return
    }
    b.Accept(conn)
}

func (b *Broker) handleHealthz(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(struct {
        Uptime  float64 `json:"uptime"`
        Waiting int     `json:"waiting"`
        Pairs   int     `json:"pairs"`
    }{
        Uptime:  b.Uptime().Seconds(),
        Waiting: b.WaitingCount(),
        Pairs:   b.PairCount(),
    })
}
