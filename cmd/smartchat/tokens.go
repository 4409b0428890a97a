package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/cli"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/tokens"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens [text]",
	Short: "Estimate the token count of a prompt",
	Long: `Estimate how many tokens a prompt costs, using a character-ratio
heuristic. The text is taken from the arguments, or from stdin when no
arguments are given.`,
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, args []string) error {
	text, err := readPrompt(args)
	if err != nil {
		return cli.NewCommandError("tokens", err)
	}

	fmt.Println(tokens.NewEstimator().CountText(text))
	return nil
}
