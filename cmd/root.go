package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	backendURL string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "cardlink",
		Short: "Proximity card enrollment and access station",
		Long: `Cardlink links proximity cards to students and records daily card access.

A keyboard-wedge reader types each card UID as a burst of keystrokes. Enrollment
only accepts a UID after three consecutive identical reads; the access kiosk
registers every valid read.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			if g.verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&g.dbPath, "db", "", "Local sqlite database (overrides store.path)")
	cmd.PersistentFlags().StringVar(&g.backendURL, "backend", "", "Attendance backend URL (overrides backend.url)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(&g))
	cmd.AddCommand(newEnrollCmd(&g))
	cmd.AddCommand(newAccessCmd(&g))
	cmd.AddCommand(newStudentsCmd(&g))
	cmd.AddCommand(newExportCmd(&g))

	return cmd
}
