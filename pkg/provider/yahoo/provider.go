// Package yahoo 通过 Yahoo Finance chart 接口获取股票指数、ETF 与外汇的历史K线。
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"fundbot/pkg/dataset"
	"fundbot/pkg/interval"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"
	"fundbot/pkg/timing"

	"github.com/sirupsen/logrus"
)

const (
	// Name 提供商名称
	Name = "yahoo"
	// DefaultBaseURL 默认接口地址
	DefaultBaseURL = "https://query1.finance.yahoo.com"
)

// DefaultConfig 默认配置
func DefaultConfig() core.HTTPConfig {
	return core.HTTPConfig{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		UserAgent: "Mozilla/5.0",
	}
}

// Provider Yahoo 数据提供商
type Provider struct {
	config     core.HTTPConfig
	httpClient *http.Client
	log        *logrus.Entry
}

// NewProvider 创建 Yahoo 数据提供商，该接口不需要凭证
func NewProvider(config core.HTTPConfig, log logrus.FieldLogger) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Provider{
		config:     config,
		httpClient: core.NewHTTPClient(config.Timeout),
		log:        logger.WithComponent(log, "YahooProvider"),
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string { return Name }

// IsHealthy 无状态客户端始终可用
func (p *Provider) IsHealthy() bool { return true }

// Vocabulary 行情历史类周期词汇
func (p *Provider) Vocabulary() interval.Vocabulary { return interval.PriceHistory }

// Fields 返回行字段
func (p *Provider) Fields() []string { return dataset.OHLCVFields }

// chartResponse chart 接口响应，空值用指针表示
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				GMTOffset            int64  `json:"gmtoffset"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries 获取单个代码在 [start, end] 内的K线
func (p *Provider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	if start.After(end) {
		return nil, core.NewProviderError(Name, id, core.ErrInvalidRange)
	}

	native, fellBack := interval.Normalize(period, interval.PriceHistory)
	if fellBack {
		p.log.WithFields(logrus.Fields{"interval": period, "fallback": native}).Warn("周期不受支持，回退到日线")
	}

	query := url.Values{}
	query.Set("period1", strconv.FormatInt(timing.TruncateDay(start).Unix(), 10))
	// period2 为开区间，取结束日期次日零点
	query.Set("period2", strconv.FormatInt(timing.TruncateDay(end).AddDate(0, 0, 1).Unix(), 10))
	query.Set("interval", native)
	query.Set("includeAdjustedClose", "true")

	header := http.Header{}
	if p.config.UserAgent != "" {
		header.Set("User-Agent", p.config.UserAgent)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", strings.TrimRight(p.config.BaseURL, "/"), url.PathEscape(id))

	var resp chartResponse
	if err := core.GetJSON(ctx, p.httpClient, Name, endpoint, query, header, &resp); err != nil {
		return nil, core.NewProviderError(Name, id, err)
	}
	if resp.Chart.Error != nil {
		return nil, core.NewProviderError(Name, id,
			fmt.Errorf("api error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return []dataset.Row{}, nil
	}

	return toRows(id, native, resp), nil
}

func toRows(id, native string, resp chartResponse) []dataset.Row {
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []dataset.Row{}
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	// 日线及以上周期按交易所当地日期对齐
	daily := !strings.HasSuffix(native, "m") && !strings.HasSuffix(native, "h")
	loc := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GMTOffset)

	rows := make([]dataset.Row, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		values := make(map[string]float64, 6)
		put(values, dataset.FieldOpen, quote.Open, i)
		put(values, dataset.FieldHigh, quote.High, i)
		put(values, dataset.FieldLow, quote.Low, i)
		put(values, dataset.FieldClose, quote.Close, i)
		put(values, dataset.FieldVolume, quote.Volume, i)
		put(values, dataset.FieldAdjClose, adj, i)

		// 节假日等空K线
		if _, ok := values[dataset.FieldClose]; !ok {
			continue
		}

		date := time.Unix(ts, 0).UTC()
		if daily {
			local := time.Unix(ts, 0).In(loc)
			date = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		}
		rows = append(rows, dataset.Row{Date: date, ID: id, Values: values})
	}
	return rows
}

// exchangeLocation 交易所时区。K线时间戳是交易所当地零点，
// 优先按时区名换算以区分夏令时，时区名未知时退回 gmtoffset。
func exchangeLocation(name string, gmtoffset int64) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if gmtoffset == 0 {
		return time.UTC
	}
	return time.FixedZone("", int(gmtoffset))
}

func put(values map[string]float64, field string, series []*float64, i int) {
	if i < len(series) && series[i] != nil {
		values[field] = *series[i]
	}
}
