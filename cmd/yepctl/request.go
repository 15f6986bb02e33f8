// cmd/yepctl/request.go
// Implements `yepctl request`: a one-shot request() call over the client
// transport, printing the response body to stdout.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/logging"
)

func newRequestCmd() *cobra.Command {
    var flags connectFlags
    var method, path, bodyStr string

    cmd := &cobra.Command{
        Use:   "request",
        Short: "Send one request() over the client transport and print the response",
        RunE: func(cmd *cobra.Command, args []string) error {
            tr, err := flags.connect(cmd.Context())
            if err != nil {
                return err
            }
            defer tr.Close()

            var body json.RawMessage
            if bodyStr != "" {
                body = json.RawMessage(bodyStr)
            }

            resp, err := tr.Request(cmd.Context(), method, path, nil, body)
            if resp != nil {
                fmt.Println(string(resp.Body))
            }
            if err != nil {
                logging.Sugar().Warnw("request failed", "err", err)
                return err
            }
            return nil
        },
    }

    flags.register(cmd)
    cmd.Flags().StringVar(&method, "method", "GET", "HTTP method")
    cmd.Flags().StringVar(&path, "path", "/health", "Request path")
    cmd.Flags().StringVar(&bodyStr, "body", "", "Raw JSON request body")
    return cmd
}
