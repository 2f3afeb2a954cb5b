package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored analysis sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, sessions)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.ID,
					s.CreatedAt.Local().Format(time.DateTime),
					strconv.Itoa(s.FileCount),
					strconv.Itoa(s.Completed),
					strconv.Itoa(s.Failed),
					yesNo(s.FinishedAt != nil),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "Session"},
				{title: "Started"},
				{title: "Files", numeric: true},
				{title: "Completed", numeric: true},
				{title: "Failed", numeric: true},
				{title: "Finished"},
			}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of sessions to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
