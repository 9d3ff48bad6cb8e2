package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/pageflow/internal/cli"
	"github.com/aretw0/pageflow/internal/presentation/tui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the conversation server. Without --flows it serves the built-in
signup wizard on /signup. Metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Driver, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("file-dir") {
			cfg.Store.File.Dir, _ = cmd.Flags().GetString("file-dir")
		}
		if cmd.Flags().Changed("sqlite-path") {
			cfg.Store.SQLite.Path, _ = cmd.Flags().GetString("sqlite-path")
		}
		if cmd.Flags().Changed("redis-addr") {
			cfg.Store.Redis.Addr, _ = cmd.Flags().GetString("redis-addr")
		}
		if cmd.Flags().Changed("redis-lock") {
			cfg.Store.Redis.Lock, _ = cmd.Flags().GetBool("redis-lock")
		}
		if cmd.Flags().Changed("trace") {
			cfg.Tracing.Enabled, _ = cmd.Flags().GetBool("trace")
		}
		if cmd.Flags().Changed("trace-output") {
			cfg.Tracing.Enabled = true
			cfg.Tracing.Output, _ = cmd.Flags().GetString("trace-output")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger, reg)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           app.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting pageflow server", "addr", srv.Addr, "flows", app.Engine.Flows().IDs(), "demo", app.Demo)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				return srv.Close()
			}
			logger.Info("pageflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("store", "memory", "Conversation store: memory, file, sqlite or redis")
	serveCmd.Flags().String("file-dir", ".pageflow/sessions", "Directory of the file store")
	serveCmd.Flags().String("sqlite-path", "pageflow.db", "Database file of the sqlite store")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	serveCmd.Flags().Bool("trace", false, "Export OpenTelemetry spans of dispatched requests")
	serveCmd.Flags().String("trace-output", "", "File receiving spans (default: stderr)")
	serveCmd.Flags().Bool("redis-lock", false, "Serialise conversations across instances with a redis lock")
}
