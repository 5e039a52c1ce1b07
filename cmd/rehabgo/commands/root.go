package commands

import (
	"context"
	"fmt"
	"os"

	"rehabgo/lib/restyutil"
	"rehabgo/lib/scrapers/medbridge"
	"rehabgo/lib/telemetry"

	"github.com/spf13/cobra"
)

var flagVerbose bool
var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "rehabgo",
	Short: "rehabgo resolves exercise programs from the patient portal and publishes them as a static site.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(flagVerbose)
		if flagVerbose {
			medbridge.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/medbridge"))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging and raw http dumps.")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.json5", "Path to the configuration file.")
}

func ExecuteContext(ctx context.Context) {
	tel, err := telemetry.SetupFromEnv(ctx, "rehabgo")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup telemetry:", err)
	}
	defer tel.Shutdown(context.Background())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
