package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/config"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/dynamo"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/memory"
	redisinfra "github.com/aurachatapp/aurachat-premium/internal/infrastructure/redis"
	transporthttp "github.com/aurachatapp/aurachat-premium/internal/transport/http"
	"github.com/aurachatapp/aurachat-premium/internal/worker"
)

// backend bundles the repositories of one storage backend.
type backend struct {
	pending      transporthttp.PendingRepository
	ledger       transporthttp.ProofLedger
	sessions     transporthttp.SessionRepository
	customers    transporthttp.CustomerRepository
	sweepTargets []worker.Target
	close        func()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case "memory", "file":
		var (
			s   *memory.Store
			err error
		)
		if cfg.StoreBackend == "file" {
			s, err = memory.Open(cfg.StoreFile)
			if err != nil {
				return nil, err
			}
			log.Info("file store opened", zap.String("path", cfg.StoreFile))
		} else {
			s = memory.New()
		}
		return &backend{
			pending:   s.Pending(),
			ledger:    s.Ledger(),
			sessions:  s.Sessions(),
			customers: s.Customers(),
			sweepTargets: []worker.Target{
				{Name: "pending", Store: s.Pending()},
				{Name: "consumed", Store: s.Ledger()},
				{Name: "sessions", Store: s.Sessions()},
			},
			close: func() {},
		}, nil

	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates missing tables and enables TTL; safe to run on every start.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, log)
		t := cfg.DynamoTables
		pending := dynamo.NewPendingRepo(client, t.PendingVerifications)
		ledger := dynamo.NewLedgerRepo(client, t.ConsumedProofs)
		sessions := dynamo.NewSessionRepo(client, t.Sessions)
		return &backend{
			pending:   pending,
			ledger:    ledger,
			sessions:  sessions,
			customers: dynamo.NewCustomerRepo(client, t.Customers),
			sweepTargets: []worker.Target{
				{Name: "pending", Store: pending},
				{Name: "consumed", Store: ledger},
				{Name: "sessions", Store: sessions},
			},
			close: func() {},
		}, nil

	case "redis":
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s := redisinfra.NewStore(client, cfg.RedisPrefix)
		// Redis expires keys itself, so there is nothing to sweep.
		return &backend{
			pending:   s.Pending(),
			ledger:    s.Ledger(),
			sessions:  s.Sessions(),
			customers: s.Customers(),
			close: func() {
				if err := client.Close(); err != nil {
					log.Warn("redis close", zap.Error(err))
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
