package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

var statsNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStatsStore struct {
	err        error
	statsArg   models.TokenFilter
	historyArg models.TokenFilter
	projects   []models.ProjectBreakdown
}

func (f *fakeStatsStore) TokenStats(_ context.Context, _ int, filter models.TokenFilter) (models.TokenStats, error) {
	f.statsArg = filter
	if f.err != nil {
		return models.TokenStats{}, f.err
	}
	return models.NewTokenStats(1200, 3400, 0, 5000, 4), nil
}

func (f *fakeStatsStore) TokenHistory(_ context.Context, _ models.HistoryRange, filter models.TokenFilter) ([]models.TokenDataPoint, error) {
	f.historyArg = filter
	return []models.TokenDataPoint{
		models.NewTokenDataPoint(statsNow.Add(-2*time.Hour), 100, 50, 0, 0),
		models.NewTokenDataPoint(statsNow.Add(-time.Hour), 300, 80, 0, 0),
	}, nil
}

func (f *fakeStatsStore) HostBreakdown(context.Context, int) ([]models.HostBreakdown, error) {
	return []models.HostBreakdown{
		{Hostname: "laptop", TotalTokens: 9600, TurnCount: 4, LastActive: statsNow.Add(-time.Hour)},
	}, nil
}

func (f *fakeStatsStore) ProjectBreakdown(context.Context, int) ([]models.ProjectBreakdown, error) {
	return f.projects, nil
}

func (f *fakeStatsStore) AllBucketStats(_ context.Context, current []models.UsageBucket, _ int) ([]models.BucketStats, error) {
	out := make([]models.BucketStats, 0, len(current))
	for _, b := range current {
		st := models.BucketStats{Label: b.Label}
		if b.Label == "per 5 hours" {
			st.Avg, st.Max, st.SampleCount = 42, 88, 12
		}
		out = append(out, st)
	}
	return out, nil
}

func TestRenderStats(t *testing.T) {
	store := &fakeStatsStore{projects: []models.ProjectBreakdown{
		{Project: "/src/cud", Hostname: "laptop", TotalTokens: 9600, SessionCount: 2, LastActive: statsNow},
	}}
	var buf bytes.Buffer

	err := renderStats(context.Background(), &buf, store, statsOptions{
		now:  statsNow,
		days: 7,
		rng:  models.Range24Hours,
	})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{
		"Token usage, last 7 days",
		"9,600",
		"Quota utilization, average over 7 days",
		"per 5 hours",
		"42%",
		"HOST", "laptop",
		"PROJECT", "/src/cud",
		"24 Hours",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Opus", "buckets without samples are skipped")
	assert.Equal(t, models.FilterNone, store.statsArg.Kind)
}

func TestRenderStats_Filters(t *testing.T) {
	store := &fakeStatsStore{projects: []models.ProjectBreakdown{{Project: "/other"}}}
	var buf bytes.Buffer

	err := renderStats(context.Background(), &buf, store, statsOptions{
		now:     statsNow,
		host:    "laptop",
		project: "/src/cud",
		days:    7,
		rng:     models.Range7Days,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Token usage, last 7 days (host laptop, project /src/cud)"))
	assert.NotContains(t, out, "/other", "the project table is skipped when filtering by project")
	assert.Equal(t, models.FilterProject, store.statsArg.Kind)
	assert.Equal(t, models.FilterProject, store.historyArg.Kind)
}

func TestRenderStats_Error(t *testing.T) {
	store := &fakeStatsStore{err: errors.New("database is locked")}
	err := renderStats(context.Background(), &bytes.Buffer{}, store, statsOptions{days: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "cud "))
}

func TestStatsCmd_InvalidRange(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"stats", "--range", "2w"})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.ErrorIs(t, err, models.ErrInvalidRange)
}
