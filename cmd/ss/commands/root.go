// Package commands implements the ss binary's CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ss",
	Short: "Docs++ Storage Server",
	Long: `ss is a Docs++ Storage Server: it owns the live file content, sentence
locks, undo history, and checkpoints for whatever files the Naming
Server assigns it, and registers itself with the Naming Server on
startup and on a recurring heartbeat.

Use "ss start" to run the server; "ss version" to print build info.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./config.yaml)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("ss version %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}
