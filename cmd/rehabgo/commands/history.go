package commands

import (
	"os"
	"time"

	"rehabgo/lib/serviceutil"
	"rehabgo/services/resolver"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var flagHistoryLimit *int

func init() {
	flagHistoryLimit = historyCmd.Flags().Int("limit", 20, "How many runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [run_id]",
	Short: "Lists past resolution runs, or the per-program results of one run.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, err := resolver.OpenHistory(cfg.HistoryDb)
		if err != nil {
			serviceutil.Fatal("failed to open history db", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)

		if len(args) == 1 {
			results, err := store.Results(ctx, args[0])
			if err != nil {
				serviceutil.Fatal("failed to read run results", err)
			}
			t.AppendHeader(table.Row{"program", "slug", "via", "exercises", "error"})
			for _, result := range results {
				status := result.ErrorKind
				if status == "" {
					status = "ok"
				}
				t.AppendRow(table.Row{
					result.ProgramName, result.Slug, result.BindVia,
					result.ExerciseCount, status,
				})
			}
			t.Render()
			return
		}

		runs, err := store.Runs(ctx, *flagHistoryLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		t.AppendHeader(table.Row{"run id", "started", "duration", "programs", "succeeded"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.Id,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
				run.TokenCount,
				run.SuccessCount,
			})
		}
		t.Render()
	},
}
