package main

import (
	"context"
	"fmt"
	"io"

	"github.com/paisatax/taxgraph/internal/cli"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/internal/runtime"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Validate a rule catalog",
	Long: `Loads the catalog, checks every node definition and the dependency
graph (unknown dependencies, cycles) and reports how many nodes a session
with the given parameters would materialize.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := globalOpts
		if len(args) > 0 {
			opts.CatalogPath = args[0]
		}
		params, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		logger, err := cli.CreateLogger(opts)
		if err != nil {
			return err
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			return validateCatalog(cmd.OutOrStdout(), opts.CatalogPath, params)
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		changes, err := cli.WatchFile(ctx, opts.CatalogPath, logger)
		if err != nil {
			return err
		}
		for {
			if err := validateCatalog(cmd.OutOrStdout(), opts.CatalogPath, params); err != nil {
				cli.PrintSystemMessage(cmd.OutOrStdout(), "Invalid: %v", err)
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Waiting for changes...")
			if _, ok := <-changes; !ok {
				return nil
			}
		}
	},
}

func validateCatalog(w io.Writer, path string, params domain.SessionParams) error {
	engine, f, err := cli.CreateEngine(path, logging.NewNop())
	if err != nil {
		return err
	}
	g := engine.Catalog().Graph()
	fmt.Fprintf(w, "Catalog '%s' %s is valid: %d node definitions, %d families.\n", f.Name, f.Version, g.Len(), len(f.Families))

	if params.TaxYear == 0 {
		return nil
	}
	if err := runtime.ValidateParams(params); err != nil {
		return err
	}
	fmt.Fprintf(w, "A %d %s session materializes %d nodes.\n", params.TaxYear, params.FilingStatus, len(g.Materialize(params)))
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("watch", false, "Re-validate whenever the catalog changes")
	addParamsFlags(validateCmd)
}
