package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/ifgate"
	"github.com/aretw0/ifgate/internal/cli"
	"github.com/aretw0/ifgate/internal/telemetry"
	httpAdapter "github.com/aretw0/ifgate/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the session API: POST /sessions, POST /sessions/{id}/command,
GET /sessions/{id}/transcript, DELETE /sessions/{id}, GET /games, /health, /info and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, "")
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		version := strings.TrimSpace(ifgate.Version)
		shutdownTelemetry, err := telemetry.Setup(ctx, "ifgate", version, cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("error initializing telemetry: %w", err)
		}
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(tctx); err != nil {
				logger.Warn("Telemetry shutdown failed", "err", err)
			}
		}()

		app, err := cli.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				logger.Warn("Shutdown left errors", "err", err)
			}
		}()

		go app.RunSweeper(ctx)

		srv := &http.Server{
			Addr: cfg.Addr(),
			Handler: httpAdapter.NewHandler(app.Service,
				httpAdapter.WithLogger(logger),
				httpAdapter.WithVersion(version),
				httpAdapter.WithMetrics(app.Metrics.Handler()),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting ifgate server", "address", srv.Addr, "games", cfg.GamePath, "store", cfg.Store, "interpreter", cfg.Interpreter)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("ifgate server stopped", "sessions_closed", app.Registry.Len())
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 3000, "Port to listen on (overrides PORT)")
}
