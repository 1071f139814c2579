package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync against the configured upstream and print store stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.SyncDefaultDays
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.sync.Sync(ctx, days)
			if err != nil {
				return err
			}
			stats, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"result": res, "stats": stats})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "lookback in days when the store is empty (default SYNC_DEFAULT_DAYS)")
	return cmd
}
