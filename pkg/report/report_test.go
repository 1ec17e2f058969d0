package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundbot/pkg/collector"
	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *dataset.Store {
	t.Helper()
	codec, err := dataset.NewCodec("csv")
	require.NoError(t, err)
	return dataset.NewStore(t.TempDir(), codec)
}

func rows(n int) []dataset.Row {
	out := make([]dataset.Row, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = dataset.Row{Date: start.AddDate(0, 0, i), ID: "VNQ", Values: map[string]float64{dataset.FieldClose: float64(i)}}
	}
	return out
}

func sampleRun() *collector.Run {
	finished := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	clamped := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return &collector.Run{
		ID:         "run-1",
		FinishedAt: finished,
		Window: collector.Window{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		Interval:          "3mo",
		IntervalFallbacks: map[string]string{"exchange-trading": "1d"},
		Results: []collector.Result{
			{Market: "stocks", Success: true, RowsTotal: 12345, NewRows: 6, EffectiveStart: &clamped},
			{Market: "real_estate", Success: false, State: collector.StateFetchEachID, Err: errors.New("no rows fetched")},
			{Market: "crypto", Success: false, State: collector.StateInit, Err: errors.New("BINANCE_API_KEY is not set")},
		},
	}
}

func TestReporter_Render(t *testing.T) {
	store := newStore(t)
	schema := dataset.NewSchema("stocks", dataset.OHLCVFields)
	require.NoError(t, store.Save(schema, rows(2)))
	reSchema := dataset.NewSchema("real_estate", dataset.OHLCVFields)
	require.NoError(t, store.Save(reSchema, rows(3)))

	logFile := filepath.Join(t.TempDir(), "collection_log.txt")
	require.NoError(t, os.WriteFile(logFile, []byte("time=x level=error msg=\"old run\"\n"), 0644))

	r := NewReporter(Config{Dir: t.TempDir(), LogFile: logFile}, store,
		map[string]dataset.Schema{"stocks": schema, "real_estate": reSchema},
		logger.Discard())

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("time=y level=info msg=ok\ntime=z level=error msg=\"Error fetching VNQ\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var out bytes.Buffer
	require.NoError(t, r.Render(&out, sampleRun()))
	text := out.String()

	assert.Contains(t, text, "数据采集报告 (2024-06-15)")
	assert.Contains(t, text, "采集区间: 2024-01-01 ~ 2024-06-15")
	assert.Contains(t, text, "成功市场: 1 / 3")
	assert.Contains(t, text, "共 12,345 行", "数字按千分位格式化")
	assert.Contains(t, text, "采集周期: 3mo")
	assert.Contains(t, text, "周期回退: exchange-trading 不支持该周期，使用 1d")
	assert.Contains(t, text, "实际起始日期 2024-02-01")
	assert.Contains(t, text, "real_estate: 数据文件存在")
	assert.Contains(t, text, "共 3 行")
	assert.Contains(t, text, "crypto: 数据文件不存在")
	assert.Contains(t, text, "- crypto [INIT]: BINANCE_API_KEY is not set")
	assert.Contains(t, text, "Error fetching VNQ")
	assert.NotContains(t, text, "old run", "只包含本次运行的错误行")
}

func TestReporter_AfterRunWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewReporter(Config{Dir: dir}, newStore(t), nil, logger.Discard())

	run := sampleRun()
	require.NoError(t, r.AfterRun(context.Background(), run))

	path := filepath.Join(dir, "collection_report_20240615.txt")
	assert.Equal(t, path, r.Path(run))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stocks: 数据文件不存在")
}

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"文本格式错误", `time="2024-06-15" level=error msg="boom"`, true},
		{"JSON格式错误", `{"level":"error","msg":"boom"}`, true},
		{"致命错误", `level=fatal msg="bye"`, true},
		{"普通信息", `level=info msg="error in message text"`, false},
		{"警告", `level=warning msg="empty"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsErrorLine(tt.line))
		})
	}
}
