// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/account"
	accounthttp "github.com/passkeep/passkeep/internal/account/http"
	"github.com/passkeep/passkeep/internal/account/postgres"
	"github.com/passkeep/passkeep/internal/config"
	"github.com/passkeep/passkeep/internal/logging"
	"github.com/passkeep/passkeep/internal/mail"
	"github.com/passkeep/passkeep/internal/observability"
	"github.com/passkeep/passkeep/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Passkeep HTTP server",
		Long: `Start the HTTP server handling registration, login, and
password reset requests, plus the observability endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("base-url", "", "externally reachable base URL for reset links")
	cmd.Flags().Duration("request-timeout", 0, "per-request timeout")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", "", "log format (json or text)")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("passkeep", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	slog.Info("starting server",
		"addr", cfg.Server.Addr,
		"base_url", cfg.Server.BaseURL,
	)

	st, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer st.Close()

	slog.Info("connected to database")

	repo := postgres.NewAccountRepository(st.Pool())
	hasher := account.NewArgon2idHasher()

	mailer, err := buildMailer(cfg, logger)
	if err != nil {
		return err
	}

	accounts, err := account.NewService(repo, hasher)
	if err != nil {
		return err
	}
	resets, err := account.NewPasswordResetServiceWithLogger(repo, hasher, mailer, cfg.Server.BaseURL, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
			defer pingCancel()
			return st.Ping(pingCtx) == nil
		})
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	handler := accounthttp.NewHandler(logger, accounts, resets, metrics)

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	handler.MountRoutes(router)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Server started")
	slog.Info("server ready", "addr", cfg.Server.Addr)

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		return oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping HTTP server", "error", err)
	}

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// buildMailer selects the outbound mail implementation. Without a
// SendGrid API key messages are logged instead of delivered, which
// keeps local development working without credentials.
func buildMailer(cfg *config.Config, logger *slog.Logger) (account.Mailer, error) {
	if cfg.Mail.SendGridAPIKey == "" {
		slog.Warn("no SendGrid API key configured, logging mail instead of sending")
		return mail.NewSlogMailer(logger), nil
	}
	return mail.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.SenderName, cfg.Mail.SenderAddr)
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
