// Package cmd provides the CLI for logexplain.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is the CLI version reported by --version.
var Version = "0.1.0"

// NewRootCmd builds the logexplain command around opts.
func NewRootCmd(opts *ExplainOptions) *cobra.Command {
	if opts == nil {
		opts = DefaultExplainOptions()
	}

	cmd := &cobra.Command{
		Use:   "logexplain [file]",
		Short: "Explain JSON logs in plain English using an LLM",
		Long: `logexplain reads newline-delimited JSON logs from a file or stdin and asks
a chat-completion model what they mean: a short explanation, the probable
root causes and the top remediation actions.

By default the last --lines non-blank lines are explained together. With
--per-entry every line is parsed and explained on its own.

The API key is read from OPENAI_API_KEY, in the environment or in the
--env-file. Other settings may come from flags, LOGEXPLAIN_* variables or
a --config file (YAML or TOML).

Examples:
  logexplain /var/log/app.jsonl
  kubectl logs deploy/api | logexplain -n 100
  logexplain app.jsonl --per-entry --model gpt-4o-mini
  logexplain app.jsonl --per-entry --follow
  logexplain app.jsonl --dry-run --format json`,
		Args:          cobra.MaximumNArgs(1),
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Path == "" && len(args) == 1 {
				opts.Path = args[0]
			}
			if opts.Stdin == nil {
				opts.Stdin = cmd.InOrStdin()
			}
			if opts.Stdout == nil {
				opts.Stdout = cmd.OutOrStdout()
			}
			if opts.Stderr == nil {
				opts.Stderr = cmd.ErrOrStderr()
			}
			return RunExplainCommand(cmd.Context(), opts)
		},
	}

	bindExplainFlags(cmd, opts)
	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted. Fatal errors are printed to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRoot(ctx, NewRootCmd(DefaultExplainOptions()))
}

// executeRoot runs cmd and reports a failure on the command's stderr.
func executeRoot(ctx context.Context, cmd *cobra.Command) error {
	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(cmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
