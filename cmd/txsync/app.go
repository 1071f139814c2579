package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/txn-aggregator/internal/config"
	"github.com/baharkarakas/txn-aggregator/internal/db"
	"github.com/baharkarakas/txn-aggregator/internal/events"
	"github.com/baharkarakas/txn-aggregator/internal/logger"
	"github.com/baharkarakas/txn-aggregator/internal/metrics"
	repo "github.com/baharkarakas/txn-aggregator/internal/repository"
	"github.com/baharkarakas/txn-aggregator/internal/repository/memory"
	"github.com/baharkarakas/txn-aggregator/internal/repository/postgres"
	"github.com/baharkarakas/txn-aggregator/internal/services"
	"github.com/baharkarakas/txn-aggregator/internal/upstream"
	"github.com/baharkarakas/txn-aggregator/internal/worker"
)

// app holds the wired components shared by serve and sync.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	store repo.Transactions
	sync  *services.SyncService
	wp    *worker.Pool

	pool *pgxpool.Pool
	nats *events.NATSPublisher
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	metrics.Init()
	a := &app{cfg: cfg, log: log}

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.pool = pool
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				a.close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		a.store = postgres.NewRepositories(pool, log).Transactions
	default:
		a.store = memory.NewTransactionsRepo(log)
	}
	log.Info("transaction store ready", "driver", cfg.StoreDriver)

	client := upstream.NewClient(cfg.UpstreamURL,
		upstream.WithPath(cfg.UpstreamPath),
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithMaxRedirects(cfg.UpstreamMaxRedirects),
		upstream.WithPageSize(cfg.UpstreamPageSize),
		upstream.WithLogger(log),
	)

	opts := []services.SyncOption{services.WithSyncLogger(log)}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.nats = nc
		a.wp = worker.NewPool(2, 64, log)
		opts = append(opts, services.WithEvents(nc, cfg.NATSSubject, a.wp))
		log.Info("publishing sync events", "subject", cfg.NATSSubject)
	}
	a.sync = services.NewSyncService(a.store, client, opts...)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a.wp != nil {
		a.wp.Stop()
	}
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.log.Warn("nats close", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
