// Package fred 通过 FRED observations 接口获取国债与公司债收益率等经济数据序列。
package fred

import (
	"context"
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
	Name = "fred"
	// DefaultBaseURL 默认接口地址
	DefaultBaseURL = "https://api.stlouisfed.org"
	// missingValue FRED 用 "." 表示缺失观测值
	missingValue = "."
)

// Config FRED 配置
type Config struct {
	core.HTTPConfig `mapstructure:",squash"`
	APIKey          string `mapstructure:"-"`
}

// DefaultConfig 默认配置，API key 需另行注入
func DefaultConfig() Config {
	return Config{
		HTTPConfig: core.HTTPConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
	}
}

// Provider FRED 数据提供商
type Provider struct {
	config     Config
	httpClient *http.Client
	log        *logrus.Entry
}

// NewProvider 创建 FRED 数据提供商，缺少 API key 时返回配置错误
func NewProvider(config Config, log logrus.FieldLogger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, core.MissingCredential(Name, "FRED_API_KEY")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Provider{
		config:     config,
		httpClient: core.NewHTTPClient(config.Timeout),
		log:        logger.WithComponent(log, "FredProvider"),
	}, nil
}

// Name 返回提供商名称
func (p *Provider) Name() string { return Name }

// IsHealthy 无状态客户端始终可用
func (p *Provider) IsHealthy() bool { return true }

// Vocabulary 经济数据周期词汇
func (p *Provider) Vocabulary() interval.Vocabulary { return interval.EconomicSeries }

// Fields 返回行字段
func (p *Provider) Fields() []string { return dataset.SeriesFields }

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// FetchSeries 获取经济序列在 [start, end] 内的观测值，缺失值跳过
func (p *Provider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	if start.After(end) {
		return nil, core.NewProviderError(Name, id, core.ErrInvalidRange)
	}

	native, fellBack := interval.Normalize(period, interval.EconomicSeries)
	if fellBack {
		p.log.WithFields(logrus.Fields{"interval": period, "fallback": native}).Warn("周期不受支持，回退到日度")
	}

	query := url.Values{}
	query.Set("series_id", id)
	query.Set("api_key", p.config.APIKey)
	query.Set("file_type", "json")
	query.Set("observation_start", timing.FormatDate(start))
	query.Set("observation_end", timing.FormatDate(end))
	query.Set("frequency", native)

	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/fred/series/observations"

	var resp observationsResponse
	if err := core.GetJSON(ctx, p.httpClient, Name, endpoint, query, nil, &resp); err != nil {
		return nil, core.NewProviderError(Name, id, err)
	}
	if resp.ErrorMessage != "" {
		return nil, core.NewProviderError(Name, id, fmt.Errorf("api error %d: %s", resp.ErrorCode, resp.ErrorMessage))
	}

	rows := make([]dataset.Row, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		if obs.Value == missingValue || obs.Value == "" {
			continue
		}
		date, err := timing.ParseDate(obs.Date)
		if err != nil {
			return nil, core.NewProviderError(Name, id, fmt.Errorf("observation date %q: %w", obs.Date, err))
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			return nil, core.NewProviderError(Name, id, fmt.Errorf("observation value %q: %w", obs.Value, err))
		}
		rows = append(rows, dataset.Row{
			Date:   date,
			ID:     id,
			Values: map[string]float64{dataset.FieldValue: v},
		})
	}
	return rows, nil
}
