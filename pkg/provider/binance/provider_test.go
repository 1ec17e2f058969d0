package binance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fundbot/pkg/dataset"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.APIKey = "key"
	cfg.APISecret = "secret"
	return cfg
}

func kline(openMs int64) string {
	return fmt.Sprintf(`[%d,"100.5","110.0","95.25","105.0","12.5",%d,"1312.5",42,"6.0","630.0","0"]`, openMs, openMs+86399999)
}

func TestNewProvider_RequiresCredentials(t *testing.T) {
	_, err := NewProvider(DefaultConfig(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	_, err = NewProvider(cfg, nil)
	assert.Contains(t, err.Error(), "BINANCE_API_SECRET")
}

func TestFetchSeries_ParsesKlines(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	var gotKey, gotInterval string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotInterval = r.URL.Query().Get("interval")
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		fmt.Fprintf(w, "[%s,%s]", kline(day), kline(day+86400000))
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL), logger.Discard())
	require.NoError(t, err)

	rows, err := p.FetchSeries(context.Background(), "BTCUSDT",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "1mo")
	require.NoError(t, err)

	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "1M", gotInterval)
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.InDelta(t, 105.0, rows[0].Values[dataset.FieldClose], 1e-9)
	assert.InDelta(t, 1312.5, rows[0].Values[dataset.FieldQuoteVolume], 1e-9)
	assert.InDelta(t, 42, rows[0].Values[dataset.FieldTrades], 1e-9)
}

func TestFetchSeries_ClampsStartDate(t *testing.T) {
	var gotStart string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("startTime")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	p, err := NewProvider(testConfig(server.URL), log)
	require.NoError(t, err)

	rows, err := p.FetchSeries(context.Background(), "ETHUSDT",
		time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), "1d")
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Equal(t, strconv.FormatInt(EarliestDate.UnixMilli(), 10), gotStart)
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "requested=2015-01-01")
	assert.Contains(t, buf.String(), "clamped=2017-07-14")
}

func TestFetchSeries_Paginates(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		n := pageLimit
		if calls > 1 {
			n = 3
		}
		var buf bytes.Buffer
		buf.WriteString("[")
		for i := 0; i < n; i++ {
			if i > 0 {
				buf.WriteString(",")
			}
			buf.WriteString(kline(start + int64(i)*60000))
		}
		buf.WriteString("]")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	rows, err := p.FetchSeries(context.Background(), "BNBUSDT", base, base.AddDate(0, 0, 2), "1m")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, rows, pageLimit+3)
}

func TestFetchSeries_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p, err := NewProvider(testConfig(server.URL), nil)
	require.NoError(t, err)

	_, err = p.FetchSeries(context.Background(), "NOPE", time.Now().AddDate(0, 0, -3), time.Now(), "1d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProvider))
	assert.Contains(t, err.Error(), "Invalid symbol")
}
