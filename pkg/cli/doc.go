/*
Package cli provides command-line utilities shared by the smartchat command:
output formatters, typed command errors, and signal handling.

Output Formatting:

Command results render as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For cancelling in-flight completions on Ctrl-C:

	ctx := cli.SetupSignalHandler()
	resp, err := orch.Complete(ctx, req)
*/
package cli
