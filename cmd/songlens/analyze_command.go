package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"songlens/internal/workflow"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var csvPath string
	var upload bool

	cmd := &cobra.Command{
		Use:   "analyze PATH...",
		Short: "Analyze audio files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if upload && strings.TrimSpace(csvPath) == "" {
				return fmt.Errorf("--upload requires --csv")
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var opts []workflow.ManagerOption
			if batchSize > 0 {
				opts = append(opts, workflow.WithBatchSize(batchSize))
			}
			mgr, err := ctx.newManager(cmd.OutOrStdout(), opts...)
			if err != nil {
				return err
			}
			defer mgr.Close()

			summary, runErr := mgr.Analyze(runCtx, args)
			if runErr != nil && summary.SessionID == "" {
				return runErr
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s: %d of %d songs completed, %d failed (%s)\n",
				summary.SessionID, summary.Completed, summary.Total, summary.Failed, summary.Duration.Round(time.Millisecond))

			if path := strings.TrimSpace(csvPath); path != "" {
				cfg, _ := ctx.ensureConfig()
				if err := writeCSVFile(path, mgr.Records(), cfg.ModelNames()); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
				if upload {
					key, err := ctx.uploadFile(context.WithoutCancel(runCtx), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Uploaded %s\n", key)
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Songs per batch (default from config)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write results to a CSV file")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the CSV to the configured object storage")
	return cmd
}
