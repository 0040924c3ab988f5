// Package app provides the entry point for the qbsync application.
package app

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:               "qbsync",
	DisableAutoGenTag: true,
	Short:             "Student records to accounting platform sync service",
	Long: `qbsync pushes applicant, student, invoice and payment records from the
university management system database into the connected accounting platform.
It serves the sync API, runs the background sync loop and manages the OAuth
connection lifecycle.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command for qbsync.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("qbsync (unknown build)")
			return
		}
		fmt.Printf("qbsync %s (%s)\n", info.Main.Version, info.GoVersion)
	},
}
