// cmd/yep-broker/main.go
// Standalone binary entrypoint for the public relay broker.
// Configured via CLI flags or YEP_BROKER_-prefixed environment variables,
// with sane defaults for local testing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kzahel/yepanywhere/internal/alerts"
	"github.com/kzahel/yepanywhere/internal/alerts/sinks"
	"github.com/kzahel/yepanywhere/internal/broker"
	"github.com/kzahel/yepanywhere/internal/logging"
)

func main() {
    listen := flag.String("listen", ":4444", "HTTP listen address (host:port)")
    dataDir := flag.String("data-dir", "./data", "Directory for the sqlite registration store")
    redisAddr := flag.String("redis-addr", "", "Redis address for HA deployments (empty uses sqlite)")
    reclaimDays := flag.Int("reclaim-days", 30, "Delete registrations idle longer than this many days")
    disableMetrics := flag.Bool("no-metrics", false, "Disable the Prometheus /metrics endpoint")
    alertInterval := flag.Duration("alert-interval", 30*time.Second, "How often to evaluate alert rules against current metrics")
    alertWebhookURL := flag.String("alert-webhook-url", "", "Optional webhook URL to page in addition to the log sink")
    configFile := flag.String("config", "", "Optional config file (YAML/TOML/JSON)")
    flag.Parse()

    lg, err := zap.NewProduction()
    if err != nil {
        log.Fatalf("zap: %v", err)
    }
    logging.Set(lg)
    defer lg.Sync()

    cfg := broker.DefaultConfig()
    broker.LoadConfig(&cfg, *configFile)
    flag.Visit(func(f *flag.Flag) {
        switch f.Name {
        case "listen":
            cfg.ListenAddr = *listen
        case "data-dir":
            cfg.DataDir = *dataDir
        case "redis-addr":
            cfg.RedisAddr = *redisAddr
        case "reclaim-days":
            cfg.ReclaimDays = *reclaimDays
        }
    })
    cfg.EnableMetrics = !*disableMetrics

    store, err := openStore(cfg)
    if err != nil {
        lg.Fatal("open store", zap.Error(err))
    }
    defer store.Close()

    b := broker.New(cfg, store)
    httpSrv := b.StartHTTP()

    ctx, cancel := context.WithCancel(context.Background())
    go b.StartReclaimLoop(ctx, 6*time.Hour)

    engine := newAlertEngine(*alertWebhookURL)
    go b.StartAlertLoop(ctx, engine, *alertInterval)

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    <-sigCh
    lg.Info("signal received, shutting down")
    cancel()

    shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer shutdownCancel()
    _ = httpSrv.Shutdown(shutdownCtx)
    lg.Info("goodbye")
}

// newAlertEngine wires up the broker's paging rules: a persistently high
// waiting backlog (origins registered but nobody connecting) and a spike in
// rejected registrations/connects (most often invalid or already-claimed
// usernames).
func newAlertEngine(webhookURL string) *alerts.Engine {
    engineSinks := []alerts.Sink{sinks.NewLogSink()}
    if webhookURL != "" {
        engineSinks = append(engineSinks, sinks.NewWebhookSink(webhookURL))
    }
    engine := alerts.NewEngine(engineSinks...)
    mustAddRule(engine, "waiting_backlog", "waiting_slots > 500")
    mustAddRule(engine, "rejection_spike", "rejections_total > 50")
    return engine
}

func mustAddRule(engine *alerts.Engine, name, expr string) {
    if err := engine.AddRule(name, expr); err != nil {
        log.Fatalf("alerts: add rule %q: %v", name, err)
    }
}

func openStore(cfg broker.Config) (broker.Store, error) {
    if cfg.RedisAddr != "" {
        cli := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
        return broker.NewRedisStore(cli), nil
    }
    if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
        return nil, err
    }
    return broker.OpenSQLite(filepath.Join(cfg.DataDir, "broker.db"))
}
