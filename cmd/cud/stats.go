package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
	"github.com/j-veylop/claude-usage-dashboard/internal/services/usage"
	"github.com/j-veylop/claude-usage-dashboard/internal/ui/components"
)

const statsWidth = 72

// statsStore is the part of the store the stats report reads.
type statsStore interface {
	TokenStats(ctx context.Context, days int, f models.TokenFilter) (models.TokenStats, error)
	TokenHistory(ctx context.Context, r models.HistoryRange, f models.TokenFilter) ([]models.TokenDataPoint, error)
	HostBreakdown(ctx context.Context, days int) ([]models.HostBreakdown, error)
	ProjectBreakdown(ctx context.Context, days int) ([]models.ProjectBreakdown, error)
	AllBucketStats(ctx context.Context, current []models.UsageBucket, days int) ([]models.BucketStats, error)
}

type statsOptions struct {
	now      time.Time
	host     string
	project  string
	days     int
	rng      models.HistoryRange
	projects int
}

func statsCmd() *cobra.Command {
	var (
		days     int
		rangeArg string
		host     string
		project  string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print token totals, breakdowns and a usage chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rng, err := models.ParseHistoryRangeStrict(rangeArg)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.StatsDays
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			return renderStats(cmd.Context(), cmd.OutOrStdout(), store, statsOptions{
				now:      time.Now(),
				host:     host,
				project:  project,
				days:     days,
				rng:      rng,
				projects: 10,
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "lookback for totals and breakdowns (default: stats_days)")
	cmd.Flags().StringVar(&rangeArg, "range", models.Range24Hours.String(), "chart range: 1h, 24h, 7d, 30d or all")
	cmd.Flags().StringVar(&host, "host", "", "only count reports from this hostname")
	cmd.Flags().StringVar(&project, "project", "", "only count reports from this working directory")
	return cmd
}

func renderStats(ctx context.Context, out io.Writer, store statsStore, opts statsOptions) error {
	if err := renderTotals(ctx, out, store, opts); err != nil {
		return err
	}
	if err := renderBuckets(ctx, out, store, opts.days); err != nil {
		return err
	}
	if err := renderHosts(ctx, out, store, opts); err != nil {
		return err
	}
	if opts.project == "" {
		if err := renderProjects(ctx, out, store, opts); err != nil {
			return err
		}
	}
	return renderTokenChart(ctx, out, store, opts)
}

func renderTotals(ctx context.Context, out io.Writer, store statsStore, opts statsOptions) error {
	st, err := store.TokenStats(ctx, opts.days, models.StatsFilter(opts.host, opts.project))
	if err != nil {
		return fmt.Errorf("failed to load token stats: %w", err)
	}

	title := fmt.Sprintf("Token usage, last %d days", opts.days)
	var scope []string
	if opts.host != "" {
		scope = append(scope, "host "+opts.host)
	}
	if opts.project != "" {
		scope = append(scope, "project "+opts.project)
	}
	if len(scope) > 0 {
		title += " (" + strings.Join(scope, ", ") + ")"
	}
	fmt.Fprintln(out, title)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  Input\t%s\n", components.FormatTokens(st.TotalInput))
	fmt.Fprintf(w, "  Output\t%s\n", components.FormatTokens(st.TotalOutput))
	fmt.Fprintf(w, "  Cache write\t%s\n", components.FormatTokens(st.TotalCacheCreation))
	fmt.Fprintf(w, "  Cache read\t%s\n", components.FormatTokens(st.TotalCacheRead))
	fmt.Fprintf(w, "  Total\t%s\n", components.FormatTokens(st.TotalTokens))
	fmt.Fprintf(w, "  Turns\t%s\n", components.FormatTokens(st.TurnCount))
	fmt.Fprintf(w, "  Per turn\t%.0f in / %.0f out\n", st.AvgInputPerTurn, st.AvgOutputPerTurn)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func renderBuckets(ctx context.Context, out io.Writer, store statsStore, days int) error {
	labels := usage.Labels()
	current := make([]models.UsageBucket, len(labels))
	labelWidth := 0
	for i, l := range labels {
		current[i] = models.UsageBucket{Label: l}
		labelWidth = max(labelWidth, len(l))
	}

	stats, err := store.AllBucketStats(ctx, current, days)
	if err != nil {
		return fmt.Errorf("failed to load bucket stats: %w", err)
	}

	var lines []string
	for _, st := range stats {
		if st.SampleCount == 0 {
			continue
		}
		label := fmt.Sprintf("%-*s", labelWidth, st.Label)
		lines = append(lines, fmt.Sprintf("  %s  max %s %s",
			components.UtilizationBar(st.Avg, label, statsWidth-labelWidth),
			components.FormatPercent(st.Max), st.Trend.Arrow()))
	}
	if len(lines) == 0 {
		return nil
	}

	fmt.Fprintf(out, "Quota utilization, average over %d days\n", days)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	fmt.Fprintln(out)
	return nil
}

func renderHosts(ctx context.Context, out io.Writer, store statsStore, opts statsOptions) error {
	hosts, err := store.HostBreakdown(ctx, opts.days)
	if err != nil {
		return fmt.Errorf("failed to load host breakdown: %w", err)
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No token reports yet.")
		fmt.Fprintln(out)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tTOKENS\tTURNS\tLAST ACTIVE")
	for _, h := range hosts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			h.Hostname, components.FormatTokens(h.TotalTokens), h.TurnCount,
			components.FormatAgo(h.LastActive, opts.now))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func renderProjects(ctx context.Context, out io.Writer, store statsStore, opts statsOptions) error {
	projects, err := store.ProjectBreakdown(ctx, opts.days)
	if err != nil {
		return fmt.Errorf("failed to load project breakdown: %w", err)
	}
	if len(projects) == 0 {
		return nil
	}
	if opts.projects > 0 && len(projects) > opts.projects {
		projects = projects[:opts.projects]
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tHOST\tTOKENS\tSESSIONS\tLAST ACTIVE")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			components.Truncate(p.Project, 40), p.Hostname, components.FormatTokens(p.TotalTokens),
			p.SessionCount, components.FormatAgo(p.LastActive, opts.now))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func renderTokenChart(ctx context.Context, out io.Writer, store statsStore, opts statsOptions) error {
	points, err := store.TokenHistory(ctx, opts.rng, models.HistoryFilter(opts.host, "", opts.project))
	if err != nil {
		return fmt.Errorf("failed to load token history: %w", err)
	}
	if len(points) == 0 {
		return nil
	}

	input := make([]float64, len(points))
	output := make([]float64, len(points))
	for i, p := range points {
		input[i] = float64(p.InputTokens)
		output[i] = float64(p.OutputTokens)
	}

	fmt.Fprintln(out, components.RenderMultiLineChart(
		[][]float64{input, output},
		[]asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Green},
		components.ChartOptions{
			Caption: fmt.Sprintf("Input (blue) and output (green) tokens, %s", opts.rng.Label()),
			Width:   statsWidth - 10,
			Height:  10,
		},
	))
	return nil
}
