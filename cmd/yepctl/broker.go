// cmd/yepctl/broker.go
// Implements `yepctl broker run`, a thin wrapper around internal/broker for
// local testing without building the standalone cmd/yep-broker binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/broker"
	"github.com/kzahel/yepanywhere/internal/logging"
)

func newBrokerCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "broker",
        Short: "Run broker operations",
    }
    cmd.AddCommand(newBrokerRunCmd())
    return cmd
}

func newBrokerRunCmd() *cobra.Command {
    var listen, dataDir, redisAddr string
    var reclaimDays int

    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a broker instance in the foreground",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := broker.DefaultConfig()
            cfg.ListenAddr = listen
            cfg.DataDir = dataDir
            cfg.RedisAddr = redisAddr
            cfg.ReclaimDays = reclaimDays

            var store broker.Store
            var err error
            if redisAddr != "" {
                store = broker.NewRedisStore(redis.NewClient(&redis.Options{Addr: redisAddr}))
            } else {
                if err = os.MkdirAll(dataDir, 0o755); err != nil {
                    return err
                }
                store, err = broker.OpenSQLite(filepath.Join(dataDir, "broker.db"))
                if err != nil {
                    return err
                }
            }
            defer store.Close()

            b := broker.New(cfg, store)
            httpSrv := b.StartHTTP()

            ctx, cancel := context.WithCancel(cmd.Context())
            go b.StartReclaimLoop(ctx, 6*time.Hour)
            logging.Sugar().Infow("broker listening", "addr", listen)

            sigCh := make(chan os.Signal, 1)
            signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
            <-sigCh
            cancel()

            shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer shutdownCancel()
            return httpSrv.Shutdown(shutdownCtx)
        },
    }

    cmd.Flags().StringVar(&listen, "listen", ":4444", "HTTP listen address")
    cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "sqlite store directory")
    cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for HA deployments")
    cmd.Flags().IntVar(&reclaimDays, "reclaim-days", 30, "Idle registration reclaim threshold in days")
    return cmd
}
