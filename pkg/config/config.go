// Package config 定义采集器的全部配置及其默认值与校验。
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"fundbot/pkg/api"
	"fundbot/pkg/dataset"
	"fundbot/pkg/export"
	"fundbot/pkg/interval"
	"fundbot/pkg/logger"
	"fundbot/pkg/metrics"
	"fundbot/pkg/provider/binance"
	"fundbot/pkg/provider/core"
	"fundbot/pkg/provider/decorators"
	"fundbot/pkg/provider/fred"
	"fundbot/pkg/provider/yahoo"
	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"

	"github.com/go-playground/validator/v10"
)

// 提供商种类
const (
	ProviderYahoo   = yahoo.Name
	ProviderBinance = binance.Name
	ProviderFRED    = fred.Name
)

// Config 主配置结构
type Config struct {
	// 文件与目录
	Paths PathsConfig `mapstructure:"paths"`

	// 采集参数
	Collection CollectionConfig `mapstructure:"collection"`

	// 市场列表，顺序无关，运行时按固定顺序采集
	Markets []MarketConfig `mapstructure:"markets" validate:"required,min=1,dive"`

	// 上游接口
	Providers ProvidersConfig `mapstructure:"providers"`

	// 重试与熔断
	Decorators decorators.Config `mapstructure:"decorators"`

	// 日志配置
	Logger logger.Config `mapstructure:"logger"`

	// 输出
	Sinks   SinksConfig    `mapstructure:"sinks"`
	Metrics metrics.Config `mapstructure:"metrics"`
	Server  api.Config     `mapstructure:"server"`

	// 凭证只从环境变量读取
	Credentials Credentials `mapstructure:"-"`
}

// PathsConfig 文件与目录
type PathsConfig struct {
	DataDir        string `mapstructure:"data_dir" validate:"required"`
	ReportDir      string `mapstructure:"report_dir" validate:"required"`
	TrackerFile    string `mapstructure:"tracker_file"`    // 默认 {data_dir}/resume_tracker.json
	SummaryFile    string `mapstructure:"summary_file"`    // 默认 {data_dir}/data_range.json
	DictionaryFile string `mapstructure:"dictionary_file"` // 默认 {data_dir}/data_dictionary.json
	DictionaryXLSX string `mapstructure:"dictionary_xlsx"` // 为空时不导出 xlsx
}

// CollectionConfig 采集参数
type CollectionConfig struct {
	Interval     string        `mapstructure:"interval" validate:"required"`
	Start        string        `mapstructure:"start"` // YYYY-MM-DD，为空时从进度记录继续
	End          string        `mapstructure:"end"`   // YYYY-MM-DD，为空时为今天
	LookbackDays int           `mapstructure:"lookback_days" validate:"gte=1"`
	CallDelay    time.Duration `mapstructure:"call_delay" validate:"gte=0"`
	MarketDelay  time.Duration `mapstructure:"market_delay" validate:"gte=0"`
	Format       string        `mapstructure:"format" validate:"oneof=parquet csv json"`
}

// MarketConfig 单个市场
type MarketConfig struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Provider string   `mapstructure:"provider" validate:"required,oneof=yahoo binance fred"`
	IDKey    string   `mapstructure:"id_key" validate:"required,oneof=symbols series"`
	IDs      []string `mapstructure:"ids" validate:"required,min=1,dive,required"`
}

// ProvidersConfig 各上游接口配置
type ProvidersConfig struct {
	Yahoo   core.HTTPConfig `mapstructure:"yahoo"`
	Binance binance.Config  `mapstructure:"binance"`
	FRED    fred.Config     `mapstructure:"fred"`
}

// SinksConfig 外部输出
type SinksConfig struct {
	Redis  export.RedisConfig  `mapstructure:"redis"`
	Influx export.InfluxConfig `mapstructure:"influx"`
}

// Credentials 从环境变量读取的凭证
type Credentials struct {
	FREDAPIKey       string `envconfig:"FRED_API_KEY"`
	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret string `envconfig:"BINANCE_API_SECRET"`
}

// DefaultMarkets 默认的六个市场
func DefaultMarkets() []MarketConfig {
	return []MarketConfig{
		{Name: "stocks", Provider: ProviderYahoo, IDKey: tracker.KeySymbols, IDs: []string{"^GSPC", "^DJI", "^IXIC", "^FTSE", "^N225"}},
		{Name: "commodities", Provider: ProviderYahoo, IDKey: tracker.KeySymbols, IDs: []string{"GLD", "USO", "SLV", "DBC"}},
		{Name: "bonds", Provider: ProviderFRED, IDKey: tracker.KeySeries, IDs: []string{"DGS10", "DGS2", "DGS30", "BAA10Y", "AAA10Y"}},
		{Name: "forex", Provider: ProviderYahoo, IDKey: tracker.KeySymbols, IDs: []string{"EURUSD=X", "JPY=X", "GBPUSD=X", "AUDUSD=X", "CNY=X"}},
		{Name: "crypto", Provider: ProviderBinance, IDKey: tracker.KeySymbols, IDs: []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT"}},
		{Name: "real_estate", Provider: ProviderYahoo, IDKey: tracker.KeySymbols, IDs: []string{"VNQ", "IYR", "SCHH", "RWR", "REET"}},
	}
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:   "data",
			ReportDir: "reports",
		},
		Collection: CollectionConfig{
			Interval:     interval.DefaultToken,
			LookbackDays: 3650,
			CallDelay:    1 * time.Second,
			MarketDelay:  5 * time.Second,
			Format:       string(dataset.FormatParquet),
		},
		Markets: DefaultMarkets(),
		Providers: ProvidersConfig{
			Yahoo:   yahoo.DefaultConfig(),
			Binance: binance.DefaultConfig(),
			FRED:    fred.DefaultConfig(),
		},
		Decorators: decorators.DefaultConfig(),
		Logger: logger.Config{
			Level:  "info",
			Format: "text",
			File:   filepath.Join("logs", "collection_log.txt"),
		},
		Sinks: SinksConfig{
			Redis: export.RedisConfig{
				Addr:         "localhost:6379",
				StreamPrefix: "stream:fundbot",
				MaxLen:       10000,
			},
			Influx: export.InfluxConfig{
				URL:         "http://localhost:8086",
				Org:         "fundbot",
				Bucket:      "markets",
				Measurement: "fundbot_series",
				BatchSize:   500,
			},
		},
		Metrics: metrics.Config{
			Textfile: filepath.Join("metrics", "fundbot.prom"),
		},
		Server: api.Config{
			Addr: ":8080",
			Mode: "release",
		},
	}
}

var validate = validator.New()

// Validate 验证配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if start != nil && end != nil && start.After(*end) {
		return errors.New("collection start must not be after end")
	}

	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if seen[m.Name] {
			return fmt.Errorf("duplicate market %q", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// IntervalPlan 采集周期在各提供商词汇中的实际取值。
// 无法解析或不受支持的周期不是配置错误，按日线执行，由调用方记录回退。
func (c *Config) IntervalPlan() interval.Plan {
	return interval.Resolve(c.Collection.Interval)
}

// Window 解析显式指定的起止日期，未指定时为 nil
func (c *Config) Window() (start, end *time.Time, err error) {
	parse := func(name, s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		t, err := timing.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("collection %s %q: %w", name, s, err)
		}
		return &t, nil
	}
	if start, err = parse("start", c.Collection.Start); err != nil {
		return nil, nil, err
	}
	if end, err = parse("end", c.Collection.End); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// TrackerPath 进度文件路径
func (c *Config) TrackerPath() string {
	return orJoin(c.Paths.TrackerFile, c.Paths.DataDir, "resume_tracker.json")
}

// SummaryPath 汇总文件路径
func (c *Config) SummaryPath() string {
	return orJoin(c.Paths.SummaryFile, c.Paths.DataDir, "data_range.json")
}

// DictionaryPath 数据字典路径
func (c *Config) DictionaryPath() string {
	return orJoin(c.Paths.DictionaryFile, c.Paths.DataDir, "data_dictionary.json")
}

// TrackerDefaults 各市场的进度初始化参数
func (c *Config) TrackerDefaults() map[string]tracker.Defaults {
	out := make(map[string]tracker.Defaults, len(c.Markets))
	for _, m := range c.Markets {
		out[m.Name] = tracker.Defaults{IDKey: m.IDKey, IDs: append([]string(nil), m.IDs...)}
	}
	return out
}

// MarketNames 配置中的市场名称
func (c *Config) MarketNames() []string {
	names := make([]string, len(c.Markets))
	for i, m := range c.Markets {
		names[i] = m.Name
	}
	return names
}

func orJoin(explicit, dir, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(dir, name)
}
