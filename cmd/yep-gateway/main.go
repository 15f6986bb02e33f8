// cmd/yep-gateway/main.go
// Standalone demo gateway binary: terminates the remote client WebSocket
// against in-memory stand-in collaborators rather than a real
// origin integration, useful for smoke-testing a client transport end to
// end. It accepts client connections directly and does not register with a
// broker.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kzahel/yepanywhere/internal/alerts"
	"github.com/kzahel/yepanywhere/internal/alerts/sinks"
	"github.com/kzahel/yepanywhere/internal/gateway"
	"github.com/kzahel/yepanywhere/internal/gateway/demo"
	"github.com/kzahel/yepanywhere/internal/gateway/uploadstore"
	"github.com/kzahel/yepanywhere/internal/logging"
)

func main() {
    listen := flag.String("listen", ":4443", "HTTP listen address (host:port)")
    username := flag.String("username", "demo", "Remote access username")
    password := flag.String("password", "demo-pass", "Remote access password")
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

    cfg := gateway.DefaultConfig()
    gateway.LoadConfig(&cfg, *configFile)
    flag.Visit(func(f *flag.Flag) {
        if f.Name == "listen" {
            cfg.ListenAddr = *listen
        }
    })

    creds, err := demo.NewCredentials(*username, *password)
    if err != nil {
        lg.Fatal("derive demo credentials", zap.Error(err))
    }

    supervisor := demo.NewSupervisor()
    supervisor.Register("demo-session", demo.NewProcess(gateway.ProcessState{
        ProcessID: "demo-process", SessionID: "demo-session", State: "running",
        PermissionMode: "default", Provider: "demo", Model: "demo-model",
    }))

    gw := gateway.New(cfg, gateway.Collaborators{
        Mux:         demo.Mux{},
        Supervisor:  supervisor,
        Bus:         demo.NewBus(),
        Uploads:     uploadstore.New(),
        Credentials: creds,
    })

    httpSrv := gw.StartHTTP()
    lg.Info("demo gateway listening", zap.String("addr", cfg.ListenAddr), zap.String("username", *username))

    alertCtx, cancelAlerts := context.WithCancel(context.Background())
    engine := newAlertEngine(*alertWebhookURL)
    go gw.StartAlertLoop(alertCtx, engine, *alertInterval)

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    <-sigCh
    lg.Info("signal received, shutting down")
    cancelAlerts()

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = httpSrv.Shutdown(shutdownCtx)
    lg.Info("goodbye")
}

// newAlertEngine wires up the gateway's paging rules: a spike in SRP
// handshake failures (credential stuffing or a misconfigured client) and a
// spike in uploads torn down via upload_error.
func newAlertEngine(webhookURL string) *alerts.Engine {
    engineSinks := []alerts.Sink{sinks.NewLogSink()}
    if webhookURL != "" {
        engineSinks = append(engineSinks, sinks.NewWebhookSink(webhookURL))
    }
    engine := alerts.NewEngine(engineSinks...)
    mustAddRule(engine, "auth_failure_spike", "auth_failures_total > 20")
    mustAddRule(engine, "upload_error_spike", "upload_errors_total > 20")
    return engine
}

func mustAddRule(engine *alerts.Engine, name, expr string) {
    if err := engine.AddRule(name, expr); err != nil {
        log.Fatalf("alerts: add rule %q: %v", name, err)
    }
}
