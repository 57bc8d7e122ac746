package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ligustah/turbodl/internal/logging"
)

var (
	configFile string
	debug      bool
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:     "turbodl",
	Short:   "turbodl is a resumable, chunked HTTP download tool",
	Version: TurbodlVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
	},
}

// TurbodlVersion is set at build time via -ldflags.
var TurbodlVersion = "dev"

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "Session identifier for log correlation (random if omitted)")

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newManifestCmd())
}
