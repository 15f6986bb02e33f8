// cmd/yepctl/connect.go
// Shared flags/helpers for the client-transport sub-commands (request,
// subscribe, upload): every one of them opens exactly one Transport against
// --url with --username/--password.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/transport"
)

type connectFlags struct {
    url      string
    username string
    password string
}

func (f *connectFlags) register(cmd *cobra.Command) {
    cmd.Flags().StringVar(&f.url, "url", "ws://localhost:4443/ws", "Gateway WebSocket URL (the transport does not perform the broker's client_connect step)")
    cmd.Flags().StringVar(&f.username, "username", "", "Remote access username")
    cmd.Flags().StringVar(&f.password, "password", "", "Remote access password")
    _ = cmd.MarkFlagRequired("username")
    _ = cmd.MarkFlagRequired("password")
}

func (f *connectFlags) connect(ctx context.Context) (*transport.Transport, error) {
    return transport.Connect(ctx, transport.Config{
        URL:      f.url,
        Username: f.username,
        Password: []byte(f.password),
    })
}
