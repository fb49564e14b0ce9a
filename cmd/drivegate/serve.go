package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dostvardhan/drivegate/auth"
	"github.com/dostvardhan/drivegate/config"
	gatehttp "github.com/dostvardhan/drivegate/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long:  `Start the drivegate HTTP gateway.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("list-source", "", "listing source: index, provider (default: index)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	slog.Info("connected to index backend", "type", cfg.Database.Type)

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              cfg.Auth.ResolvedJWKSURL(),
		TTL:              time.Duration(cfg.Auth.KeyTTLSeconds) * time.Second,
		FetchesPerMinute: cfg.Auth.KeyFetchesPerMinute,
	})
	if err != nil {
		return fmt.Errorf("create key resolver: %w", err)
	}

	verifier, err := auth.NewVerifier(resolver, auth.VerifierConfig{
		Issuer:               cfg.Auth.Issuer,
		Audience:             cfg.Auth.Audience,
		DisableAudienceCheck: cfg.Auth.DisableAudienceCheck,
	})
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	policy := auth.NewAllowList(cfg.Auth.AllowedCallers)

	handlerConfig := gatehttp.HandlerConfig{
		Verifier:      verifier,
		Policy:        policy,
		CORS:          cfg.CORS,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Version:       version,
		ListSource:    cfg.List.Source,
	}

	handler := gatehttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:        addr,
		Handler:     handler.Router(),
		ReadTimeout: 30 * time.Second,
		// Long WriteTimeout: downloads stream large objects.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "issuer", cfg.Auth.Issuer, "list_source", cfg.List.Source)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
