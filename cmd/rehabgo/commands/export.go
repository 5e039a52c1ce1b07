package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rehabgo/lib/serviceutil"
	"rehabgo/lib/workout"
	"rehabgo/services/resolver"
	"rehabgo/services/site"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var flagOnly *string

func init() {
	flagOnly = exportCmd.Flags().String("only", "", "Only resolve the program whose slug matches.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--only <slug>]",
	Short: "Resolves every configured program and renders the static site.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		tokens := cfg.programTokens()
		if len(tokens) == 0 {
			serviceutil.Fatal("no programs configured", fmt.Errorf("add programs to %s", flagConfig))
		}
		if *flagOnly != "" {
			kept, suggestion := resolver.FilterTokens(tokens, *flagOnly)
			if len(kept) == 0 {
				err := fmt.Errorf("no configured program has slug %q", *flagOnly)
				if suggestion != "" {
					err = fmt.Errorf("no configured program has slug %q, did you mean %q?", *flagOnly, suggestion)
				}
				serviceutil.Fatal("unknown program", err)
			}
			tokens = kept
		}

		ctx := cmd.Context()
		service := cfg.resolverService()

		started := time.Now()
		outcomes := service.Resolve(ctx, tokens)
		finished := time.Now()

		recordHistory(cfg, started, finished, outcomes)

		var programs []workout.Program
		for _, outcome := range outcomes {
			if outcome.Err == nil {
				programs = append(programs, *outcome.Program)
			}
		}
		if len(programs) > 0 {
			renderer, err := site.NewRenderer(site.Options{
				DistDir: cfg.Site.DistDir,
				DataDir: cfg.Site.DataDir,
			})
			if err != nil {
				serviceutil.Fatal("failed to initialize site renderer", err)
			}
			if err := renderer.Render(programs); err != nil {
				serviceutil.Fatal("failed to render site", err)
			}
			slog.Info("rendered site", "dist", cfg.Site.DistDir, "programs", len(programs))
		}

		reportOutcomes(outcomes)
		if len(programs) == 0 {
			os.Exit(1)
		}
	},
}

func recordHistory(cfg Config, started, finished time.Time, outcomes []resolver.Outcome) {
	store, err := resolver.OpenHistory(cfg.HistoryDb)
	if err != nil {
		slog.Warn("failed to open history db", "path", cfg.HistoryDb, "err", err)
		return
	}
	defer store.Close()

	runId, err := store.RecordRun(context.Background(), started, finished, outcomes)
	if err != nil {
		slog.Warn("failed to record run history", "err", err)
		return
	}
	slog.Info("recorded run", "run_id", runId)
}

func reportOutcomes(outcomes []resolver.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"program", "via", "exercises", "status"})
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			t.AppendRow(table.Row{outcome.Token.Name, "", "", outcome.ErrorKind()})
			continue
		}
		t.AppendRow(table.Row{
			outcome.Token.Name,
			outcome.Binding.Via,
			outcome.Program.ExerciseCount,
			"ok",
		})
	}
	t.Render()
}
