package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"songlens/internal/logging"
	"songlens/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Analyze audio files as they land in a drop folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			mgr, err := ctx.newManager(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer mgr.Close()

			if warm {
				if err := mgr.WarmModels(runCtx); err != nil {
					logging.WarnWithContext(logger, "some models failed to warm up", "model_warmup_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "affected scores will be reported as errors"),
					)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", args[0])
			w := watch.New(args[0], cfg.WatchDebounce(), func(hctx context.Context, paths []string) {
				summary, err := mgr.Analyze(hctx, paths)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("drop folder analysis failed", logging.Error(err))
					return
				}
				fmt.Fprintf(out, "Session %s: %d completed, %d failed\n", summary.SessionID, summary.Completed, summary.Failed)
			}, logger)
			return w.Run(runCtx)
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "Initialize every model before watching")
	return cmd
}
