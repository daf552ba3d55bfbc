package cli

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// UploadCmd returns the upload command
func UploadCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Store a file through the configured permanent storage backend",
		Long: `Upload a local file with content-hash deduplication and print its URI.
Uploading the same bytes twice returns the cached URI without a second upload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ct := contentType
			if ct == "" {
				ct = detectContentType(args[0], data)
			}

			ctx := context.Background()
			c, err := buildContainer(ctx, false)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Uploader.Upload(ctx, data, ct)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := color.New(color.FgGreen).Sprint("UPLOADED")
			if res.Cached {
				state = color.New(color.FgBlue).Sprint("CACHED  ")
			}
			fmt.Fprintf(out, "%s %s\n", state, res.URI)
			fmt.Fprintf(out, "   sha256=%s size=%d type=%s\n", res.ContentHash, res.Size, res.ContentType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "Content type (default: from extension or sniffed)")
	return cmd
}

func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	ct, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return ct
}
