package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/cli"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/config"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

var chatFlags struct {
	provider    string
	model       string
	system      string
	temperature float64
	maxTokens   int
	noStream    bool
	interactive bool
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a chat completion",
	Long: `Send a chat completion to the active provider and print the reply.

The prompt is taken from the arguments, or from stdin when no arguments are
given. Replies stream by default; --no-stream waits for the full response.

Examples:
  # One-shot completion
  smartchat chat "explain goroutines in one paragraph"

  # Pipe a prompt in
  cat notes.md | smartchat chat --system "summarize"

  # Specific provider and model, buffered
  smartchat chat --provider anthropic --model claude-sonnet-4 --no-stream "hi"

  # Interactive session (config edits apply live)
  smartchat chat -i`,
}

func init() {
	chatCmd.RunE = runChat
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatFlags.provider, "provider", "p", "", "provider to use for this request")
	chatCmd.Flags().StringVarP(&chatFlags.model, "model", "m", "", "model override")
	chatCmd.Flags().StringVarP(&chatFlags.system, "system", "s", "", "system prompt")
	chatCmd.Flags().Float64VarP(&chatFlags.temperature, "temperature", "t", 0, "sampling temperature")
	chatCmd.Flags().IntVar(&chatFlags.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	chatCmd.Flags().BoolVar(&chatFlags.noStream, "no-stream", false, "wait for the full response instead of streaming")
	chatCmd.Flags().BoolVarP(&chatFlags.interactive, "interactive", "i", false, "interactive chat session")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cli.SetupSignalHandler()
	if chatFlags.provider != "" {
		if err := a.orch.SetProvider(ctx, chatFlags.provider); err != nil {
			return cli.NewCommandError("chat", err)
		}
	}

	if chatFlags.interactive {
		return runInteractive(ctx, a)
	}

	prompt, err := readPrompt(args)
	if err != nil {
		return cli.NewCommandError("chat", err)
	}

	history := systemHistory()
	history = append(history, chat.ChatMessage{Role: chat.RoleUser, Content: chat.Text(prompt)})
	_, err = send(ctx, a, history, os.Stdout)
	if err != nil {
		return cli.NewCommandError("chat", err)
	}
	return nil
}

// runInteractive runs a REPL. A config watcher applies provider and key
// edits to the running session.
func runInteractive(ctx context.Context, a *app) error {
	stopWatch, err := watchConfig(ctx, a)
	if err != nil {
		a.logger.Warn("configuration watching disabled", "error", err)
	} else if stopWatch != nil {
		defer stopWatch()
	}

	fmt.Printf("smartchat interactive (%s). /provider <id> switches, /reset clears, /quit exits.\n", a.orch.Current())

	history := systemHistory()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			history = systemHistory()
			continue
		case strings.HasPrefix(line, "/provider"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/provider"))
			if id == "" {
				fmt.Printf("current provider: %s (registered: %s)\n",
					a.orch.Current(), strings.Join(a.orch.Providers(), ", "))
				continue
			}
			if err := a.orch.SetProvider(ctx, id); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		}

		history = append(history, chat.ChatMessage{Role: chat.RoleUser, Content: chat.Text(line)})
		resp, err := send(ctx, a, history, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			// Drop the failed turn so retries start clean.
			history = history[:len(history)-1]
			continue
		}
		history = append(history, chat.ChatMessage{
			Role:    chat.RoleAssistant,
			Content: chat.Text(resp.FirstContent()),
		})
	}
}

// send performs one completion, streaming unless disabled, and returns the
// final canonical response.
func send(ctx context.Context, a *app, history []chat.ChatMessage, out io.Writer) (*chat.ChatCompletionResponse, error) {
	req := &chat.ChatRequest{
		Model:     chatFlags.model,
		Messages:  history,
		MaxTokens: chatFlags.maxTokens,
	}
	if chatCmd.Flags().Changed("temperature") {
		req.Temperature = &chatFlags.temperature
	}

	if chatFlags.noStream {
		resp, err := a.orch.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(out, resp.FirstContent())
		return resp, nil
	}

	type result struct {
		resp *chat.ChatCompletionResponse
		err  *chat.NormalizedError
	}
	done := make(chan result, 1)

	ctrl, err := a.orch.Stream(ctx, req, streaming.Handlers{
		Chunk: func(d streaming.Delta) { fmt.Fprint(out, d.Text) },
		Done:  func(resp *chat.ChatCompletionResponse) { done <- result{resp: resp} },
		Error: func(ne *chat.NormalizedError) { done <- result{err: ne} },
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		fmt.Fprintln(out)
		if r.err != nil {
			return nil, r.err
		}
		return r.resp, nil
	case <-ctx.Done():
		ctrl.Stop()
		fmt.Fprintln(out)
		return nil, ctx.Err()
	}
}

// watchConfig starts the fsnotify watcher and applies reloads to the running
// orchestrator: changed providers get rebuilt adapters, an active-provider
// edit re-routes subsequent requests.
func watchConfig(ctx context.Context, a *app) (stop func(), err error) {
	if _, statErr := os.Stat(cfgFile); statErr != nil {
		return nil, nil // nothing to watch
	}

	watcher, err := config.NewWatcher(cfgFile, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = watcher.Watch(watchCtx, func(cfg *config.Config, change config.Change) {
			a.applyConfigChange(cfg, change)
		})
	}()
	return func() {
		cancel()
		_ = watcher.Stop()
	}, nil
}

func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}
	return prompt, nil
}

func systemHistory() []chat.ChatMessage {
	if chatFlags.system == "" {
		return nil
	}
	return []chat.ChatMessage{{Role: chat.RoleSystem, Content: chat.Text(chatFlags.system)}}
}
