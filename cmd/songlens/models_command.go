package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"songlens/internal/deps"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Classifier model utilities",
	}
	modelsCmd.AddCommand(newModelsCheckCommand(ctx))
	return modelsCmd
}

func newModelsCheckCommand(ctx *commandContext) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify ffmpeg, the ONNX runtime and model files, optionally loading every model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.Check(deps.FromConfig(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				rows = append(rows, []string{st.Name, st.Target, yesNo(st.Available), st.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "Dependency"},
				{title: "Target"},
				{title: "Available"},
				{title: "Detail"},
			}, rows))

			if !warm {
				if missing := deps.Missing(statuses); missing > 0 {
					return fmt.Errorf("%d required dependencies missing", missing)
				}
				return nil
			}

			mgr, err := ctx.newManager(out)
			if err != nil {
				return err
			}
			defer mgr.Close()
			warmErr := mgr.WarmModels(cmd.Context())

			status := mgr.Status(cmd.Context())
			healthRows := make([][]string, 0, len(status.Stages))
			for _, h := range status.Stages {
				healthRows = append(healthRows, []string{h.Name, yesNo(h.Ready), h.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "Stage"},
				{title: "Ready"},
				{title: "Detail"},
			}, healthRows))
			return warmErr
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "Load and warm up every model")
	return cmd
}
