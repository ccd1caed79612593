package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/paisatax/taxgraph/internal/cli"
	httpadapter "github.com/paisatax/taxgraph/pkg/adapters/http"
	"github.com/paisatax/taxgraph/pkg/observability"
	"github.com/paisatax/taxgraph/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the session API over HTTP: create sessions, post events, stream
recompute passes (SSE) and scrape Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		lockTTL, _ := cmd.Flags().GetDuration("lock-ttl")

		opts := globalOpts
		if opts.LogLevel == "" {
			opts.LogLevel = "info"
		}
		logger, err := cli.CreateLogger(opts)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetrics(reg)

		engine, f, err := cli.CreateEngine(opts.CatalogPath, logger, metrics.Hooks())
		if err != nil {
			return err
		}
		backend, err := cli.OpenStore(opts)
		if err != nil {
			return err
		}
		defer backend.Close()

		sessions := session.NewManager(backend.Store, engine,
			session.WithLocker(backend.Locker),
			session.WithLockTTL(lockTTL),
			session.WithLogger(logger),
		)
		handler := httpadapter.NewHandler(engine, sessions,
			httpadapter.WithLogger(logger),
			httpadapter.WithMetrics(reg),
		)

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", addr, "catalog", f.Name, "store", opts.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			logger.Info("shutting down", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Duration("lock-ttl", session.DefaultLockTTL, "TTL of distributed session locks")
}
