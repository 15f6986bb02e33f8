// cmd/yepctl/gateway.go
// Implements `yepctl gateway run`, a thin wrapper around internal/gateway
// using in-memory demo collaborators, for local testing without building
// the standalone cmd/yep-gateway binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/gateway"
	"github.com/kzahel/yepanywhere/internal/gateway/demo"
	"github.com/kzahel/yepanywhere/internal/gateway/uploadstore"
	"github.com/kzahel/yepanywhere/internal/logging"
)

func newGatewayCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "gateway",
        Short: "Run gateway operations",
    }
    cmd.AddCommand(newGatewayRunCmd())
    return cmd
}

func newGatewayRunCmd() *cobra.Command {
    var listen, username, password string

    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a demo gateway instance against in-memory collaborators",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := gateway.DefaultConfig()
            cfg.ListenAddr = listen

            creds, err := demo.NewCredentials(username, password)
            if err != nil {
                return err
            }

            gw := gateway.New(cfg, gateway.Collaborators{
                Mux:         demo.Mux{},
                Supervisor:  demo.NewSupervisor(),
                Bus:         demo.NewBus(),
                Uploads:     uploadstore.New(),
                Credentials: creds,
            })

            httpSrv := gw.StartHTTP()
            logging.Sugar().Infow("gateway listening", "addr", listen, "username", username)

            sigCh := make(chan os.Signal, 1)
            signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
            <-sigCh

            shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer cancel()
            return httpSrv.Shutdown(shutdownCtx)
        },
    }

    cmd.Flags().StringVar(&listen, "listen", ":4443", "HTTP listen address")
    cmd.Flags().StringVar(&username, "username", "demo", "Remote access username")
    cmd.Flags().StringVar(&password, "password", "demo-pass", "Remote access password")
    _ = cmd.MarkFlagRequired("password")
    return cmd
}
