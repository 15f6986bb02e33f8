// cmd/yepctl/subscribe.go
// Implements `yepctl subscribe`: opens a subscribe() stream and
// prints every received event as one line of JSON until interrupted.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/internal/transport"
	"github.com/kzahel/yepanywhere/internal/wire"
)

func newSubscribeCmd() *cobra.Command {
    var flags connectFlags
    var channel, sessionID, lastEventID string

    cmd := &cobra.Command{
        Use:   "subscribe",
        Short: "Open a subscribe() stream and print events until interrupted",
        RunE: func(cmd *cobra.Command, args []string) error {
            tr, err := flags.connect(cmd.Context())
            if err != nil {
                return err
            }
            defer tr.Close()

            closed := make(chan error, 1)
            closer, err := tr.Subscribe(channel, sessionID, lastEventID, transport.Subscriber{
                OnEvent: func(ev *wire.EventMsg) {
                    line, _ := json.Marshal(ev)
                    fmt.Println(string(line))
                },
                OnClose: func(err error) {
                    closed <- err
                },
            })
            if err != nil {
                return err
            }
            defer closer()

            sigCh := make(chan os.Signal, 1)
            signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
            select {
            case <-sigCh:
            case err := <-closed:
                if err != nil {
                    logging.Sugar().Warnw("subscription closed", "err", err)
                }
            }
            return nil
        },
    }

    flags.register(cmd)
    cmd.Flags().StringVar(&channel, "channel", "activity", "Channel name (session or activity)")
    cmd.Flags().StringVar(&sessionID, "session-id", "", "Session id (required for the session channel)")
    cmd.Flags().StringVar(&lastEventID, "last-event-id", "", "Resume from this event id")
    return cmd
}
