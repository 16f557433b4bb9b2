package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-dashboard/internal/config"
	"github.com/j-veylop/claude-usage-dashboard/internal/db"
)

// openStore opens the database for a one-shot command.
func openStore(cfg *config.Config, opts ...db.Option) (*db.DB, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("storage unavailable: %w", err)
	}
	return db.New(cfg.DatabasePath, opts...)
}

func compactCmd() *cobra.Command {
	var days int
	var vacuum bool

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Fold old snapshots into hourly aggregates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			retention := cfg.Retention()
			if days > 0 {
				retention = time.Duration(days) * 24 * time.Hour
			}

			store, err := openStore(cfg, db.WithoutStartupCompaction())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			res, err := store.CompactAndRetire(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("compaction failed: %w", err)
			}
			if vacuum {
				if err := store.Vacuum(ctx); err != nil {
					return fmt.Errorf("vacuum failed: %w", err)
				}
			}
			return printCompaction(ctx, cmd, store, res)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "keep granular rows for this many days (default: retention_days)")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "reclaim disk space afterwards")
	return cmd
}

func printCompaction(ctx context.Context, cmd *cobra.Command, store *db.DB, res db.CompactionResult) error {
	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tAGGREGATED\tDELETED\tROWS")
	fmt.Fprintf(w, "usage\t%d\t%d\t%d granular, %d hourly\n",
		res.UsageHourly, res.UsageDeleted, counts.UsageSnapshots, counts.UsageHourly)
	fmt.Fprintf(w, "tokens\t%d\t%d\t%d granular, %d hourly\n",
		res.TokenHourly, res.TokenDeleted, counts.TokenSnapshots, counts.TokenHourly)
	return w.Flush()
}
