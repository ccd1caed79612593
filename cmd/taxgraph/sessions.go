package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/paisatax/taxgraph/internal/cli"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage stored sessions",
	Long:    `List, inspect, and remove sessions kept in the configured store.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cli.OpenStore(globalOpts)
		if err != nil {
			return err
		}
		defer backend.Close()

		keys, err := backend.Store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(keys) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored sessions found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tYEAR\tSTATUS\tREVISION\tUPDATED")
		for _, key := range keys {
			sess, err := backend.Store.Load(cmd.Context(), key)
			if err != nil {
				fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", key, err)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", key, sess.Params.TaxYear, sess.Params.FilingStatus,
				sess.Revision, sess.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-key>",
	Short: "Print a stored session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cli.OpenStore(globalOpts)
		if err != nil {
			return err
		}
		defer backend.Close()

		sess, err := backend.Store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <session-key>...",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("give at least one session key, or --all")
		}

		backend, err := cli.OpenStore(globalOpts)
		if err != nil {
			return err
		}
		defer backend.Close()

		if all {
			if args, err = backend.Store.List(cmd.Context()); err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
		}

		failed := 0
		for _, key := range args {
			if err := backend.Store.Delete(cmd.Context(), key); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", key, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", key)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
	sessionsRmCmd.Flags().Bool("all", false, "Remove every stored session")
}
