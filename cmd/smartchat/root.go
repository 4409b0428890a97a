package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "smartchat",
	Short: "Canonical chat client for many LLM providers",
	Long: `Smartchat translates one canonical chat schema to and from the wire
dialects of multiple LLM providers.

It provides:
  - Buffered and streaming chat completions
  - Cached model catalogs with scheduled refresh
  - Credential verification per provider
  - Token estimation for prompt budgeting

Provider credentials and the active provider live in a YAML configuration
file; every value can be overridden with SMARTCHAT_* environment variables.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "smartchat.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
}
