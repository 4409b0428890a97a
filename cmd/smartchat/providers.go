package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/cli"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List known providers",
	Long: `List the built-in providers, marking which are configured and which
one is active.`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

type providerStatus struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Active     bool   `json:"active"`
}

func runProviders(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var out []providerStatus
	for _, id := range adapters.BuiltinIDs() {
		cfg, _ := adapters.Builtin(id)
		_, configured := a.cfg.Providers[id]
		out = append(out, providerStatus{
			ID:         id,
			Name:       cfg.Name,
			Configured: configured,
			Active:     id == a.cfg.ActiveProvider,
		})
	}

	if outputFormat == string(cli.FormatJSON) {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, out)
	}

	for _, p := range out {
		marker := " "
		if p.Active {
			marker = "*"
		}
		state := ""
		if p.Configured {
			state = "configured"
		}
		fmt.Printf("%s %-12s %-24s %s\n", marker, p.ID, p.Name, state)
	}
	return nil
}
