package main

import (
	"fmt"
	"os"

	"github.com/paisatax/taxgraph/internal/cli"
	"github.com/paisatax/taxgraph/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enter events into a session",
	Long: `Opens the session given by --session (creating it when it does not exist)
and applies events typed at the prompt, read as JSON lines (--json) or
replayed from a YAML script (--script).

Prompt syntax:
  wages = 52000                      preparer entry
  ocr wages = 52000                  OCR entry
  override agi = 50000 // reason     pin a value
  clear agi                          release an override
  show agi | state | help | quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		opts := cli.RunOptions{Options: globalOpts, Params: params}
		opts.Params.SessionKey, _ = cmd.Flags().GetString("session")
		opts.ScriptPath, _ = cmd.Flags().GetString("script")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.StopOnReject, _ = cmd.Flags().GetBool("stop-on-reject")
		plain, _ := cmd.Flags().GetBool("plain")

		if opts.Params.TaxYear == 0 && opts.ScriptPath == "" {
			// Resuming needs no params; a new session falls back to the current season.
			opts.Params.TaxYear = defaultTaxYear()
		}

		if width, tty := cli.Terminal(os.Stdout); tty && !opts.JSON && !plain {
			opts.Render = tui.NewRenderer(false, width)
		}
		if _, tty := cli.Terminal(os.Stdin); tty && opts.ScriptPath == "" && !opts.JSON {
			opts.Prompt = "> "
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		report, err := cli.Run(ctx, opts, os.Stdin, cmd.OutOrStdout())
		if err = cli.HandleExecutionError(err); err != nil {
			return err
		}
		if report != nil && !opts.JSON && report.Session != nil {
			if ctx.Signal() != nil {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Session '%s' saved at revision %d (%d events applied).",
				report.Session.Params.SessionKey, report.Session.Revision, report.Applied)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringP("session", "s", "", "Session key (a new key is generated when empty)")
	f.String("script", "", "Replay the events of a YAML script")
	f.Bool("json", false, "Read and write JSON lines")
	f.Bool("plain", false, "Do not style markdown output")
	f.Bool("fresh", false, "Discard the stored session and start over")
	f.Bool("stop-on-reject", false, "Stop at the first rejected event")
	addParamsFlags(runCmd)
}
