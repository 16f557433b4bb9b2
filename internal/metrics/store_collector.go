package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/claude-usage-dashboard/internal/db"
	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

// CountSource reports per-table row counts. *db.DB implements it.
type CountSource interface {
	Counts(ctx context.Context) (db.TableCounts, error)
}

const collectTimeout = 5 * time.Second

// storeCollector implements prometheus.Collector for store row counts.
type storeCollector struct {
	src      CountSource
	rowsDesc *prometheus.Desc
}

// NewStoreCollector creates a collector exposing one gauge per table.
func NewStoreCollector(src CountSource) prometheus.Collector {
	return &storeCollector{
		src: src,
		rowsDesc: prometheus.NewDesc(
			"cud_store_rows",
			"Number of rows in each store table.",
			[]string{"table"}, nil,
		),
	}
}

// Describe sends the descriptor to the channel.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rowsDesc
}

// Collect queries the store and sends one gauge per table.
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	counts, err := c.src.Counts(ctx)
	if err != nil {
		logger.Warn("failed to collect store row counts", "error", err)
		return
	}

	for table, n := range map[string]int64{
		"usage_snapshots": counts.UsageSnapshots,
		"usage_hourly":    counts.UsageHourly,
		"token_snapshots": counts.TokenSnapshots,
		"token_hourly":    counts.TokenHourly,
	} {
		ch <- prometheus.MustNewConstMetric(c.rowsDesc, prometheus.GaugeValue, float64(n), table)
	}
}
