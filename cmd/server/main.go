package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/enrollment-lottery/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lotteryd",
	Short: "Waitlist lottery and enrollment service",
	PersistentPreRun: func(*cobra.Command, []string) {
		config.LoadEnv()
		slog.SetDefault(config.NewLogger())
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("command failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
