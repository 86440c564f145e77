// Package commands implements the nm binary's CLI commands.
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
	Use:   "nm",
	Short: "Docs++ Naming Server",
	Long: `nm is the Docs++ Naming Server: it tracks the file catalog, access
control lists, and storage-server registry, and routes clients to the
right Storage Server for every command.

Use "nm start" to run the server; "nm version" to print build info.`,
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
		cmd.Printf("nm version %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}
