package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/txn-aggregator/internal/logger"
	"github.com/baharkarakas/txn-aggregator/internal/mockapi"
	"github.com/baharkarakas/txn-aggregator/internal/ratelimit"
)

func mockCmd() *cobra.Command {
	var (
		addr  string
		count int
		days  int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a local mock of the upstream transactions API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("dev", "")
			items := mockapi.Generate(mockapi.GenOptions{Count: count, Days: days, Seed: seed})
			srv := &http.Server{
				Addr:              addr,
				Handler:           mockapi.NewServer(items, log).Router(ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultMax), nil),
				ReadHeaderTimeout: 5 * time.Second,
			}
			log.Info("mock upstream listening", "addr", addr, "transactions", len(items))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	cmd.Flags().IntVar(&count, "count", mockapi.DefaultCount, "number of generated transactions")
	cmd.Flags().IntVar(&days, "days", mockapi.DefaultDays, "spread transactions over this many days")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "generator seed (0 = random)")
	return cmd
}
