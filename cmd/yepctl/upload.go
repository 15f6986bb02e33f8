// cmd/yepctl/upload.go
// Implements `yepctl upload`: streams a local file through upload(),
// printing a progress line per chunk acknowledgement.
package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kzahel/yepanywhere/internal/transport"
)

func newUploadCmd() *cobra.Command {
    var flags connectFlags
    var projectID, sessionID, filePath string
    var chunkSize int

    cmd := &cobra.Command{
        Use:   "upload",
        Short: "Upload a local file via upload() and print the resulting file metadata",
        RunE: func(cmd *cobra.Command, args []string) error {
            f, err := os.Open(filePath)
            if err != nil {
                return err
            }
            defer f.Close()

            info, err := f.Stat()
            if err != nil {
                return err
            }

            tr, err := flags.connect(cmd.Context())
            if err != nil {
                return err
            }
            defer tr.Close()

            mimeType := mime.TypeByExtension(filepath.Ext(filePath))
            if mimeType == "" {
                mimeType = "application/octet-stream"
            }

            file, err := tr.Upload(cmd.Context(), projectID, sessionID, filepath.Base(filePath), mimeType, f, info.Size(), transport.UploadOptions{
                ChunkSize: chunkSize,
                OnProgress: func(bytesReceived int64) {
                    fmt.Printf("\r%d/%d bytes", bytesReceived, info.Size())
                },
            })
            fmt.Println()
            if err != nil {
                return err
            }
            fmt.Println(string(file))
            return nil
        },
    }

    flags.register(cmd)
    cmd.Flags().StringVar(&projectID, "project-id", "", "Project id")
    cmd.Flags().StringVar(&sessionID, "session-id", "", "Session id")
    cmd.Flags().StringVar(&filePath, "file", "", "Local file path to upload")
    cmd.Flags().IntVar(&chunkSize, "chunk-size", transport.DefaultChunkSize, "Chunk size in bytes")
    _ = cmd.MarkFlagRequired("project-id")
    _ = cmd.MarkFlagRequired("session-id")
    _ = cmd.MarkFlagRequired("file")
    return cmd
}
