package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/cli"
)

var modelsFlags struct {
	provider string
	refresh  bool
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the provider's available models",
	Long: `List the models the provider offers. Results are cached; --refresh
forces a re-fetch from the provider API.

Examples:
  # Models of the active provider
  smartchat models

  # Models of a specific provider, bypassing the cache
  smartchat models --provider openrouter --refresh

  # Machine-readable output
  smartchat models -o json`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().StringVarP(&modelsFlags.provider, "provider", "p", "", "provider to list ('' for the active one)")
	modelsCmd.Flags().BoolVarP(&modelsFlags.refresh, "refresh", "r", false, "bypass the cache")
}

func runModels(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cli.SetupSignalHandler()
	models, err := a.orch.Models(ctx, modelsFlags.provider, modelsFlags.refresh)
	if err != nil {
		return cli.NewCommandError("models", err)
	}

	if outputFormat == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, models)
	}

	for _, m := range models {
		line := m.ID
		if m.ContextWindow > 0 {
			line = fmt.Sprintf("%s\t(context %d", m.ID, m.ContextWindow)
			if m.Multimodal {
				line += ", multimodal"
			}
			line += ")"
		}
		fmt.Println(line)
	}
	return nil
}
