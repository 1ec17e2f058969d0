// Package binance 通过 Binance klines 接口获取加密货币交易对的历史K线。
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fundbot/pkg/dataset"
	"fundbot/pkg/interval"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"
	"fundbot/pkg/timing"

	"github.com/sirupsen/logrus"
)

const (
	// Name 提供商名称
	Name = "binance"
	// DefaultBaseURL 默认接口地址
	DefaultBaseURL = "https://api.binance.com"
	// pageLimit 单次请求的最大K线数量
	pageLimit = 1000
)

// EarliestDate 交易所最早可查询的日期，更早的起始日期会被截断到这里
var EarliestDate = time.Date(2017, 7, 14, 0, 0, 0, 0, time.UTC)

// Config Binance 配置
type Config struct {
	core.HTTPConfig `mapstructure:",squash"`
	APIKey          string `mapstructure:"-"`
	APISecret       string `mapstructure:"-"`
}

// DefaultConfig 默认配置，凭证需另行注入
func DefaultConfig() Config {
	return Config{
		HTTPConfig: core.HTTPConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
	}
}

// Provider Binance 数据提供商
type Provider struct {
	config     Config
	httpClient *http.Client
	log        *logrus.Entry
}

// NewProvider 创建 Binance 数据提供商，缺少 key 或 secret 时返回配置错误
func NewProvider(config Config, log logrus.FieldLogger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, core.MissingCredential(Name, "BINANCE_API_KEY")
	}
	if config.APISecret == "" {
		return nil, core.MissingCredential(Name, "BINANCE_API_SECRET")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Provider{
		config:     config,
		httpClient: core.NewHTTPClient(config.Timeout),
		log:        logger.WithComponent(log, "BinanceProvider"),
	}, nil
}

// Name 返回提供商名称
func (p *Provider) Name() string { return Name }

// IsHealthy 无状态客户端始终可用
func (p *Provider) IsHealthy() bool { return true }

// Vocabulary 交易所周期词汇
func (p *Provider) Vocabulary() interval.Vocabulary { return interval.ExchangeTrading }

// Fields 返回行字段
func (p *Provider) Fields() []string { return dataset.KlineFields }

// EarliestStart 实现 core.StartFloor 接口
func (p *Provider) EarliestStart() time.Time { return EarliestDate }

// FetchSeries 分页获取交易对在 [start, end] 内的K线
func (p *Provider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	start = timing.TruncateDay(start)
	if start.Before(EarliestDate) {
		p.log.WithFields(logrus.Fields{
			"id":        id,
			"requested": timing.FormatDate(start),
			"clamped":   timing.FormatDate(EarliestDate),
		}).Warn("起始日期早于交易所最早数据日期，已截断")
		start = EarliestDate
	}
	if start.After(end) {
		return []dataset.Row{}, nil
	}

	native, fellBack := interval.Normalize(period, interval.ExchangeTrading)
	if fellBack {
		p.log.WithFields(logrus.Fields{"interval": period, "fallback": native}).Warn("周期不受支持，回退到日线")
	}

	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/api/v3/klines"
	header := http.Header{}
	header.Set("X-MBX-APIKEY", p.config.APIKey)

	// 结束日期包含当天全部K线
	endMs := timing.TruncateDay(end).AddDate(0, 0, 1).UnixMilli() - 1
	cursor := start.UnixMilli()

	rows := make([]dataset.Row, 0)
	for cursor <= endMs {
		query := url.Values{}
		query.Set("symbol", id)
		query.Set("interval", native)
		query.Set("startTime", strconv.FormatInt(cursor, 10))
		query.Set("endTime", strconv.FormatInt(endMs, 10))
		query.Set("limit", strconv.Itoa(pageLimit))

		var klines [][]json.RawMessage
		if err := core.GetJSON(ctx, p.httpClient, Name, endpoint, query, header, &klines); err != nil {
			return nil, core.NewProviderError(Name, id, err)
		}

		lastOpen := int64(-1)
		for _, k := range klines {
			row, openMs, err := parseKline(id, k)
			if err != nil {
				return nil, core.NewProviderError(Name, id, err)
			}
			rows = append(rows, row)
			lastOpen = openMs
		}

		if len(klines) < pageLimit || lastOpen < cursor {
			break
		}
		cursor = lastOpen + 1
	}
	return rows, nil
}

// parseKline 解析一根K线：
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
func parseKline(id string, k []json.RawMessage) (dataset.Row, int64, error) {
	if len(k) < 9 {
		return dataset.Row{}, 0, fmt.Errorf("kline has %d fields, want at least 9", len(k))
	}

	var openMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return dataset.Row{}, 0, fmt.Errorf("open time: %w", err)
	}

	fields := []struct {
		name string
		idx  int
	}{
		{dataset.FieldOpen, 1},
		{dataset.FieldHigh, 2},
		{dataset.FieldLow, 3},
		{dataset.FieldClose, 4},
		{dataset.FieldVolume, 5},
		{dataset.FieldQuoteVolume, 7},
		{dataset.FieldTrades, 8},
	}

	values := make(map[string]float64, len(fields))
	for _, f := range fields {
		v, err := number(k[f.idx])
		if err != nil {
			return dataset.Row{}, 0, fmt.Errorf("%s: %w", f.name, err)
		}
		values[f.name] = v
	}

	return dataset.Row{Date: time.UnixMilli(openMs).UTC(), ID: id, Values: values}, openMs, nil
}

// number 价格字段是字符串，成交笔数是整数
func number(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}
