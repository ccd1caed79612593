package main

import (
	"context"
	"fmt"
	"io"

	"github.com/paisatax/taxgraph/internal/cli"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [catalog]",
	Short: "Export the dependency graph as a Mermaid diagram",
	Long: `Inspects the catalog and outputs a Mermaid diagram (graph LR) of the
node dependencies. With --session the diagram is coloured by the node
statuses of that stored session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := globalOpts
		if len(args) > 0 {
			opts.CatalogPath = args[0]
		}
		sessionKey, _ := cmd.Flags().GetString("session")
		watch, _ := cmd.Flags().GetBool("watch")

		if !watch {
			return renderGraph(cmd.Context(), cmd.OutOrStdout(), opts, sessionKey)
		}

		logger, err := cli.CreateLogger(opts)
		if err != nil {
			return err
		}
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		changes, err := cli.WatchFile(ctx, opts.CatalogPath, logger)
		if err != nil {
			return err
		}
		for {
			if err := renderGraph(ctx, cmd.OutOrStdout(), opts, sessionKey); err != nil {
				cli.PrintSystemMessage(cmd.ErrOrStderr(), "%v", err)
			}
			if _, ok := <-changes; !ok {
				return nil
			}
		}
	},
}

func renderGraph(ctx context.Context, w io.Writer, opts cli.Options, sessionKey string) error {
	engine, _, err := cli.CreateEngine(opts.CatalogPath, logging.NewNop())
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if sessionKey != "" {
		backend, err := cli.OpenStore(opts)
		if err != nil {
			return err
		}
		defer backend.Close()
		sess, err := backend.Store.Load(ctx, sessionKey)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionKey, err)
		}
		overlay = &graph.GraphOverlay{State: sess.State}
	}

	fmt.Fprint(w, graph.GenerateMermaid(engine.Catalog().Graph().Nodes(), overlay))
	return nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Colour nodes by the statuses of a stored session")
	graphCmd.Flags().Bool("watch", false, "Re-render whenever the catalog changes")
}
