package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fundbot/pkg/config"
	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"
	"fundbot/pkg/timing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"X"},
"timestamp":[1704067200,1706745600],
"indicators":{"quote":[{"open":[1,2],"high":[1,2],"low":[1,2],"close":[1,2],"volume":[10,20]}],
"adjclose":[{"adjclose":[1,2]}]}}],"error":null}}`

const observationsBody = `{"observations":[{"date":"2024-01-01","value":"4.02"},{"date":"2024-02-01","value":"4.10"}]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	yahooSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	}))
	t.Cleanup(yahooSrv.Close)
	fredSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(observationsBody))
	}))
	t.Cleanup(fredSrv.Close)

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ReportDir = filepath.Join(dir, "reports")
	cfg.Paths.DictionaryXLSX = filepath.Join(dir, "data", "data_dictionary.xlsx")
	cfg.Logger.File = ""
	cfg.Collection.CallDelay = 0
	cfg.Collection.MarketDelay = 0
	cfg.Collection.Format = "json"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Textfile = filepath.Join(dir, "metrics", "fundbot.prom")
	cfg.Decorators.Retry.Enabled = false
	cfg.Providers.Yahoo.BaseURL = yahooSrv.URL
	cfg.Providers.FRED.BaseURL = fredSrv.URL
	cfg.Providers.FRED.APIKey = "test-key"
	cfg.Providers.Binance.APIKey = ""
	require.NoError(t, os.MkdirAll(cfg.Paths.DataDir, 0755))
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	clock := &timing.FixedTimeService{At: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}

	app, err := NewApp(context.Background(), cfg, clock, logger.Discard())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"stocks", "commodities", "bonds", "forex", "crypto", "real_estate"}, app.Manager.Markets())

	run, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, run.Succeeded(), "缺少凭证的 crypto 之外全部成功")

	crypto, ok := run.Result("crypto")
	require.True(t, ok)
	assert.False(t, crypto.Success)
	assert.Contains(t, crypto.ErrMessage(), "BINANCE")

	bonds, ok := run.Result("bonds")
	require.True(t, ok)
	assert.Equal(t, 10, bonds.RowsTotal, "五个序列各两行")

	rec, err := app.Tracker.Load("bonds")
	require.NoError(t, err)
	require.NotNil(t, rec.LastFetchDate)
	assert.Equal(t, "2024-06-15", timing.FormatDate(*rec.LastFetchDate))

	rec, err = app.Tracker.Load("crypto")
	require.NoError(t, err)
	assert.Nil(t, rec.LastFetchDate)

	for _, path := range []string{
		cfg.SummaryPath(),
		cfg.DictionaryPath(),
		cfg.Paths.DictionaryXLSX,
		cfg.Metrics.Textfile,
		filepath.Join(cfg.Paths.ReportDir, "collection_report_20240615.txt"),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	// 再次运行不会产生重复行
	again, err := app.Run(context.Background())
	require.NoError(t, err)
	bonds, _ = again.Result("bonds")
	assert.Equal(t, 10, bonds.RowsTotal)
	assert.Equal(t, 0, bonds.NewRows)

	rows, err := app.Store.Load(dataset.NewSchema("stocks", dataset.OHLCVFields))
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestPromptCollection_IntervalFallsBack(t *testing.T) {
	c := config.CollectionConfig{Interval: "1mo"}
	var out bytes.Buffer
	require.NoError(t, promptCollection(strings.NewReader("\n\nfortnight\n"), &out, &c))

	assert.Equal(t, "fortnight", c.Interval, "与配置校验一致，周期不会被拒绝")
	assert.Contains(t, out.String(), "回退到")
	assert.Contains(t, out.String(), "economic-series:d")
	assert.NotContains(t, out.String(), "输入无效")
}

func TestPromptCollection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  config.CollectionConfig
	}{
		{"全部使用默认值", "\n\n\n", config.CollectionConfig{Interval: "1mo"}},
		{"输入全部参数", "2020-01-01\n2020-12-31\n1d\n", config.CollectionConfig{Start: "2020-01-01", End: "2020-12-31", Interval: "1d"}},
		{"无效日期后重试", "2020/01/01\n2020-01-01\n\n1wk\n", config.CollectionConfig{Start: "2020-01-01", Interval: "1wk"}},
		{"输入提前结束", "2021-05-05", config.CollectionConfig{Start: "2021-05-05", Interval: "1mo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.CollectionConfig{Interval: "1mo"}
			var out bytes.Buffer
			require.NoError(t, promptCollection(strings.NewReader(tt.input), &out, &c))
			assert.Equal(t, tt.want, c)
			assert.Contains(t, out.String(), "起始日期")
		})
	}
}
