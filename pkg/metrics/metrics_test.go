package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundbot/pkg/collector"
	"fundbot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_AfterMarket(t *testing.T) {
	r := NewRecorder(Config{}, logger.Discard())
	ctx := context.Background()

	require.NoError(t, r.AfterMarket(ctx, collector.Result{
		Market:      "stocks",
		Success:     true,
		RowsTotal:   120,
		NewRows:     5,
		RowsFetched: 10,
		IDsFailed:   []collector.IDFailure{{ID: "^N225"}},
		Duration:    1500 * time.Millisecond,
		Window:      collector.Window{End: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, r.AfterMarket(ctx, collector.Result{Market: "crypto", Err: errors.New("missing key")}))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.success.WithLabelValues("stocks")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.success.WithLabelValues("crypto")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.rowsTotal.WithLabelValues("stocks")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.newRows.WithLabelValues("stocks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.idsFailed.WithLabelValues("stocks")))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.duration.WithLabelValues("stocks")))
	assert.Equal(t, float64(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC).Unix()),
		testutil.ToFloat64(r.lastFetch.WithLabelValues("stocks")))
}

func TestRecorder_AfterRunWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "fundbot.prom")
	r := NewRecorder(Config{Enabled: true, Textfile: path}, logger.Discard())
	ctx := context.Background()

	started := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	run := &collector.Run{
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Results:    []collector.Result{{Market: "stocks", Success: true}, {Market: "bonds"}},
	}
	for _, res := range run.Results {
		require.NoError(t, r.AfterMarket(ctx, res))
	}
	require.NoError(t, r.AfterRun(ctx, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "fundbot_run_markets_succeeded 1")
	assert.Contains(t, text, "fundbot_run_duration_seconds 30")
	assert.Contains(t, text, `fundbot_market_success{market="bonds"} 0`)
}

func TestRecorder_DisabledSkipsTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundbot.prom")
	r := NewRecorder(Config{Enabled: false, Textfile: path}, logger.Discard())
	require.NoError(t, r.AfterRun(context.Background(), &collector.Run{}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
