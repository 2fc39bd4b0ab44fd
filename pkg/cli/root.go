package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hashserver",
	Short: "hashserver serves a fixed table of pages for integration tests",
	Long: `hashserver answers HTTP requests from a table of static pages, redirects
and basic-auth protected content loaded from YAML or JSON page files.

It is meant to stand in for remote sites while testing crawlers, fetchers
and other HTTP clients.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	initServeCmd()
	initStopCmd()
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
