package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/config"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/billing"
	jwtinfra "github.com/aurachatapp/aurachat-premium/internal/infrastructure/jwt"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/mail"
	"github.com/aurachatapp/aurachat-premium/internal/observability"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/otp"
	transporthttp "github.com/aurachatapp/aurachat-premium/internal/transport/http"
	"github.com/aurachatapp/aurachat-premium/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	store, err := openStore(ctx, cfg, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.close()

	mailer, err := mail.New(cfg, logger.Named("mail"))
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	proofs, err := jwtinfra.NewProofCodec(cfg.ProofSecret)
	if err != nil {
		return fmt.Errorf("proof codec: %w", err)
	}

	deps := &transporthttp.Deps{
		Pending:     store.pending,
		Ledger:      store.ledger,
		Sessions:    store.sessions,
		Customers:   store.customers,
		Proofs:      proofs,
		Hasher:      otp.NewHasher([]byte(cfg.ProofSecret), cfg.OTPBcryptCost),
		Mailer:      mailer,
		JWTProvider: jwtProvider,
		Log:         logger,
		Metrics:     metrics,
	}
	if cfg.StripeSecretKey != "" {
		deps.Billing = billing.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeAPIURL, cfg.BillingTimeout)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; every account resolves to free")
	}

	sweeper := worker.NewSweeper(cfg.SweepInterval, logger.Named("sweeper"), metrics, store.sweepTargets...)
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           transporthttp.NewRouter(ctx, cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreBackend),
			zap.String("session_mode", cfg.SessionMode),
			zap.String("session_alg", jwtProvider.Algorithm()),
			zap.String("mail", cfg.MailProvider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
