package main

import (
	"fmt"
	"os"

	"github.com/paisatax/taxgraph/internal/cli"
	"github.com/paisatax/taxgraph/pkg/persistence/middleware"
	"github.com/spf13/cobra"
)

var (
	globalOpts cli.Options
	redact     bool
)

var rootCmd = &cobra.Command{
	Use:   "taxgraph",
	Short: "taxgraph recomputes tax returns incrementally",
	Long: `taxgraph loads a rule catalog (YAML) into a dependency graph and keeps
preparer sessions consistent: every input event recomputes only the nodes
downstream of it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if redact {
			globalOpts.RedactPatterns = middleware.DefaultPIIPatterns
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globalOpts.CatalogPath, "catalog", "c", envOr("TAXGRAPH_CATALOG", "catalog.yaml"), "Rule catalog file (YAML or JSON)")
	flags.StringVar(&globalOpts.Store, "store", envOr("TAXGRAPH_STORE", cli.StoreFile), "Session store: memory, file, bolt or redis")
	flags.StringVar(&globalOpts.StoreDir, "store-dir", cli.DefaultStoreDir, "Directory of the file and bolt stores")
	flags.StringVar(&globalOpts.RedisAddr, "redis-addr", os.Getenv("TAXGRAPH_REDIS_ADDR"), "Redis address for the redis store")
	flags.DurationVar(&globalOpts.RedisTTL, "redis-ttl", 0, "Expire idle redis sessions after this long (0 keeps them)")
	flags.StringVar(&globalOpts.EncryptionKey, "encryption-key", os.Getenv("TAXGRAPH_ENCRYPTION_KEY"), "Base64 AES-256 key sealing stored node values")
	flags.BoolVar(&redact, "redact", false, "Mask SSNs, names and contact data before they are stored (irreversible)")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); empty disables logs")
	flags.StringVar(&globalOpts.LogFormat, "log-format", "text", "Log format (text, json)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
