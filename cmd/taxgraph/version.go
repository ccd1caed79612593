package main

import (
	"fmt"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of taxgraph",
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		if !short {
			tui.PrintBanner(cmd.OutOrStdout(), taxgraph.Version)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "taxgraph version %s\n", taxgraph.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "Print only the version line")
}
