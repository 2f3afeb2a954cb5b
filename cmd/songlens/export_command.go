package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"songlens/internal/export"
	"songlens/internal/song"
	"songlens/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var outPath string
	var upload bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored session as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			id := strings.TrimSpace(sessionID)
			if id == "" {
				latest, err := st.LatestSession(cmd.Context())
				if errors.Is(err, store.ErrNoSessions) {
					return fmt.Errorf("no sessions to export; run `songlens analyze` first")
				}
				if err != nil {
					return err
				}
				id = latest.ID
			}
			views, err := st.ListRecords(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				return fmt.Errorf("session %s has no records", id)
			}

			out := cmd.OutOrStdout()
			path := strings.TrimSpace(outPath)
			if path == "" || path == "-" {
				if upload {
					return fmt.Errorf("--upload requires --out FILE")
				}
				return export.WriteCSV(out, views, cfg.ModelNames())
			}
			if err := writeCSVFile(path, views, cfg.ModelNames()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d songs from session %s to %s\n", len(views), id, path)
			if upload {
				key, err := ctx.uploadFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Uploaded %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: latest)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default: stdout)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the CSV to the configured object storage")
	return cmd
}

func writeCSVFile(path string, views []song.View, models []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := export.WriteCSV(f, views, models); err != nil {
		_ = f.Close()
		return fmt.Errorf("write export: %w", err)
	}
	return f.Close()
}

func (c *commandContext) uploadFile(ctx context.Context, path string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return "", err
	}
	uploader, err := export.NewUploader(cfg, logger)
	if err != nil {
		return "", err
	}
	return uploader.Upload(ctx, path)
}
