// Package main is the entry point for the resourceboard CLI.
//
// ResourceBoard can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	resourceboard serve -c config.yaml    # Start the dashboard
//	resourceboard validate -c config.yaml # Validate configuration
//	resourceboard probe <url>             # Fetch and render a URL once
//	resourceboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "resourceboard",
	Short: "A live dashboard for arbitrary REST resources",
	Long: `ResourceBoard polls REST endpoints and renders their JSON responses
without knowing the response schema in advance.

Collections are shown as tables, uploaded files as a media gallery, and
every resource carries a live health badge updated over Server-Sent Events.

Quick start:
  1. Create a config file (resourceboard.yaml)
  2. Run: resourceboard serve -c resourceboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 10s
  resources:
    - name: Things
      url: http://localhost:1337/api/things`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this resourceboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "resourceboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
