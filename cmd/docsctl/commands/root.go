// Package commands implements the docsctl binary's CLI commands.
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

var (
	configFile string
	nmHost     string
	nmPort     int
	username   string
)

var rootCmd = &cobra.Command{
	Use:   "docsctl",
	Short: "Docs++ interactive client",
	Long: `docsctl is the interactive command-line client for Docs++: it connects
to a Naming Server, logs in, and drops into a prompt where every line
is a Docs++ command (VIEW, CREATE, READ, WRITE, EXEC, SEARCH, ...).

Use "docsctl connect" to start a session; "docsctl version" to print
build info.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&nmHost, "nm-host", "", "Naming Server host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&nmPort, "nm-port", 0, "Naming Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Username to log in as (prompted if omitted)")
	rootCmd.AddCommand(connectCmd)
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
		cmd.Printf("docsctl version %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}
