package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix 配置项环境变量前缀，例如 FUNDBOT_COLLECTION_INTERVAL
const EnvPrefix = "FUNDBOT"

// Load 读取配置：默认值 < 配置文件 < FUNDBOT_ 环境变量，凭证从环境变量读取。
// path 为空时在 ./config 与当前目录查找 collector.yaml，找不到文件不算错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("collector")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 配置文件给出市场列表时整体替换默认列表
	if v.InConfig("markets") {
		cfg.Markets = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.LoadCredentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCredentials 从环境变量读取凭证并注入提供商配置
func (c *Config) LoadCredentials() error {
	if err := envconfig.Process("", &c.Credentials); err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	c.Providers.FRED.APIKey = c.Credentials.FREDAPIKey
	c.Providers.Binance.APIKey = c.Credentials.BinanceAPIKey
	c.Providers.Binance.APISecret = c.Credentials.BinanceAPISecret
	return nil
}

// setDefaults 注册可被环境变量覆盖的标量配置项
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("paths.data_dir", c.Paths.DataDir)
	v.SetDefault("paths.report_dir", c.Paths.ReportDir)
	v.SetDefault("paths.tracker_file", c.Paths.TrackerFile)
	v.SetDefault("paths.summary_file", c.Paths.SummaryFile)
	v.SetDefault("paths.dictionary_file", c.Paths.DictionaryFile)
	v.SetDefault("paths.dictionary_xlsx", c.Paths.DictionaryXLSX)

	v.SetDefault("collection.interval", c.Collection.Interval)
	v.SetDefault("collection.start", c.Collection.Start)
	v.SetDefault("collection.end", c.Collection.End)
	v.SetDefault("collection.lookback_days", c.Collection.LookbackDays)
	v.SetDefault("collection.call_delay", c.Collection.CallDelay)
	v.SetDefault("collection.market_delay", c.Collection.MarketDelay)
	v.SetDefault("collection.format", c.Collection.Format)

	v.SetDefault("logger.level", c.Logger.Level)
	v.SetDefault("logger.format", c.Logger.Format)
	v.SetDefault("logger.file", c.Logger.File)

	v.SetDefault("sinks.redis.enabled", c.Sinks.Redis.Enabled)
	v.SetDefault("sinks.redis.addr", c.Sinks.Redis.Addr)
	v.SetDefault("sinks.redis.password", c.Sinks.Redis.Password)
	v.SetDefault("sinks.influx.enabled", c.Sinks.Influx.Enabled)
	v.SetDefault("sinks.influx.url", c.Sinks.Influx.URL)
	v.SetDefault("sinks.influx.token", c.Sinks.Influx.Token)

	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.textfile", c.Metrics.Textfile)

	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.mode", c.Server.Mode)
}
