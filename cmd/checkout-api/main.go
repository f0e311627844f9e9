package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ecole-masso/checkout-api/internal/api"
	"github.com/ecole-masso/checkout-api/internal/catalog"
	"github.com/ecole-masso/checkout-api/internal/config"
	"github.com/ecole-masso/checkout-api/internal/crm"
	"github.com/ecole-masso/checkout-api/internal/logging"
	"github.com/ecole-masso/checkout-api/internal/payments"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "checkout-api",
	Short:   "Masterclass checkout bridge between Stripe and LeadConnector",
	Long:    `checkout-api creates Stripe Checkout sessions for masterclass bundles and reconciles paid sessions into LeadConnector (GHL) contact tags`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("checkout-api %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	// Baseline logger for early startup logs; re-initialized from config below.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "checkout-api",
	})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "checkout-api",
	})

	log.Info().
		Str("version", Version).
		Str("catalog_version", catalog.Version).
		Int("installment_prices", len(cfg.InstallmentPriceMap)).
		Msg("Starting masterclass checkout API")

	gateway, err := payments.NewStripeGateway(cfg.StripeSecretKey)
	if err != nil {
		return fmt.Errorf("init stripe gateway: %w", err)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, &api.Deps{
		Config:   cfg,
		Catalog:  catalog.Default(cfg.InstallmentPriceMap),
		Payments: gateway,
		CRM:      crm.New(cfg.GHLAPIKey, cfg.GHLLocationID),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start server in background
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Checkout API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Checkout API stopped")
	return nil
}
