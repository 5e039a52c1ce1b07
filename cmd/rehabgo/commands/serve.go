package commands

import (
	"net/http"

	"rehabgo/lib/serviceutil"
	"rehabgo/lib/telemetry"

	"github.com/spf13/cobra"
)

var flagServePort *int

func init() {
	flagServePort = serveCmd.Flags().Int("port", 8080, "The port to serve the site on.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <port>]",
	Short: "Serves the rendered static site over http.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		telemetry.InstrumentPerfStats(cmd.Context())

		mux := http.NewServeMux()
		mux.Handle("/", http.FileServer(http.Dir(cfg.Site.DistDir)))
		serviceutil.StartHttpServer(*flagServePort, mux)
	},
}
