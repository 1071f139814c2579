package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/txn-aggregator/internal/api"
	"github.com/baharkarakas/txn-aggregator/internal/api/handlers"
	"github.com/baharkarakas/txn-aggregator/internal/auth"
	"github.com/baharkarakas/txn-aggregator/internal/ratelimit"
	"github.com/baharkarakas/txn-aggregator/internal/scheduler"
	"github.com/baharkarakas/txn-aggregator/internal/services"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax)
			var tokens *auth.TokenManager
			if cfg.SyncAuthSecret != "" {
				tokens = auth.NewTokenManager(cfg.SyncAuthSecret, cfg.JWTIssuer, auth.DefaultTTL)
			}

			h := &handlers.TransactionHandler{
				Txns:        services.NewTransactionService(a.store, log),
				Balances:    services.NewBalanceService(a.store, log),
				Payouts:     services.NewPayoutService(a.store, log),
				Sync:        a.sync,
				DefaultDays: cfg.SyncDefaultDays,
				Log:         log,
			}
			srv := &http.Server{
				Addr:              ":" + cfg.HTTPPort,
				Handler:           api.NewRouter(api.RouterDeps{Cfg: cfg, Handler: h, Limiter: limiter, Tokens: tokens}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			sched := scheduler.New(scheduler.Config{
				Interval:      cfg.SyncInterval,
				LookbackDays:  cfg.SyncPeriodicDays,
				SweepInterval: cfg.RateLimitSweepInterval,
			}, a.sync, limiter, log)

			g, gctx := errgroup.WithContext(ctx)
			if cfg.SyncEnabled {
				if err := sched.Start(gctx); err != nil {
					return err
				}
			}
			g.Go(func() error {
				log.Info("server starting", "port", cfg.HTTPPort, "sync_auth", tokens != nil)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = sched.Stop(shutdownCtx)
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
