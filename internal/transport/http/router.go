package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aurachatapp/aurachat-premium/internal/application/auth"
	"github.com/aurachatapp/aurachat-premium/internal/application/entitlement"
	"github.com/aurachatapp/aurachat-premium/internal/application/session"
	"github.com/aurachatapp/aurachat-premium/internal/config"
	jwtinfra "github.com/aurachatapp/aurachat-premium/internal/infrastructure/jwt"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/mail"
	"github.com/aurachatapp/aurachat-premium/internal/observability"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/keylock"
	"github.com/aurachatapp/aurachat-premium/internal/transport/http/handler"
	appmiddleware "github.com/aurachatapp/aurachat-premium/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Pending     PendingRepository
	Ledger      ProofLedger
	Sessions    SessionRepository
	Customers   CustomerRepository
	Billing     BillingProvider
	Proofs      ProofCodec
	Hasher      CodeHasher
	Mailer      mail.Mailer
	JWTProvider *jwtinfra.Provider
	Log         *zap.Logger
	Metrics     *observability.Metrics
}

// NewRouter builds and returns the application router.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics(deps.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustProxy)

	entitlements := entitlement.NewResolver(entitlement.ResolverDeps{
		Cache:   deps.Customers,
		Billing: deps.Billing,
		Timeout: cfg.BillingTimeout,
		Log:     log.Named("entitlement"),
		Metrics: deps.Metrics,
	})
	sessionDeps := session.ServiceDeps{
		Mode:         cfg.SessionMode,
		Store:        deps.Sessions,
		Entitlements: entitlements,
		TTL:          cfg.SessionTTL,
		Log:          log.Named("session"),
	}
	if deps.JWTProvider != nil {
		sessionDeps.Signer = deps.JWTProvider
	}
	sessionSvc := session.NewService(sessionDeps)
	authSvc := auth.NewService(auth.ServiceDeps{
		Pending:      deps.Pending,
		Ledger:       deps.Ledger,
		Proofs:       deps.Proofs,
		Hasher:       deps.Hasher,
		Mailer:       deps.Mailer,
		Sessions:     sessionSvc,
		Entitlements: entitlements,
		Locks:        keylock.New(0),
		Log:          log.Named("auth"),
		Metrics:      deps.Metrics,
		CodeTTL:      cfg.OTPTTL,
		MailTimeout:  cfg.MailTimeout,
		MaxAttempts:  cfg.OTPMaxAttempts,
		DebugEcho:    cfg.OTPDebugEcho && cfg.IsDevelopment(),
		Bypass:       cfg.OTPBypass && cfg.IsDevelopment(),
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, log)
	meH := handler.NewMeHandler(sessionSvc, log)

	r.Get("/health", healthH.Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authRL.Limit)
		r.Post("/start", authH.Start)
		r.Post("/send-code", authH.Start)
		r.Post("/verify", authH.Verify)
	})
	r.Get("/me", meH.Get)

	return r
}
