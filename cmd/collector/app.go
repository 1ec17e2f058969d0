package main

import (
	"context"
	"fmt"
	"time"

	"fundbot/pkg/collector"
	"fundbot/pkg/config"
	"fundbot/pkg/dataset"
	"fundbot/pkg/dictionary"
	"fundbot/pkg/export"
	"fundbot/pkg/logger"
	"fundbot/pkg/metrics"
	"fundbot/pkg/provider"
	"fundbot/pkg/provider/binance"
	"fundbot/pkg/provider/core"
	"fundbot/pkg/provider/decorators"
	"fundbot/pkg/provider/fred"
	"fundbot/pkg/provider/yahoo"
	"fundbot/pkg/report"
	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"

	"github.com/sirupsen/logrus"
)

// App 一次采集运行所需的全部组件
type App struct {
	Manager   *collector.Manager
	Providers *provider.ProviderManager
	Tracker   *tracker.Tracker
	Store     *dataset.Store
	Reporter  *report.Reporter

	closers []func() error
	log     *logrus.Entry
}

// NewApp 根据配置构造提供商、进度存储、数据集存储、采集器与运行回调。
// 缺少凭证的提供商不会阻止其他市场，对应市场在运行时记为失败。
func NewApp(ctx context.Context, cfg *config.Config, clock timing.TimeService, log logrus.FieldLogger) (*App, error) {
	if clock == nil {
		clock = &timing.SystemTimeService{}
	}
	entry := logger.WithComponent(log, "app")

	codec, err := dataset.NewCodec(cfg.Collection.Format)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	a := &App{
		Providers: provider.NewProviderManager(),
		Tracker:   tracker.New(cfg.TrackerPath(), cfg.TrackerDefaults(), log),
		Store:     dataset.NewStore(cfg.Paths.DataDir, codec),
		log:       entry,
	}

	unavailable := registerProviders(a.Providers, cfg, log)

	a.Manager = collector.NewManager(collector.ManagerConfig{
		SummaryPath:  cfg.SummaryPath(),
		MarketDelay:  cfg.Collection.MarketDelay,
		Interval:     cfg.Collection.Interval,
		Start:        start,
		End:          end,
		LookbackDays: cfg.Collection.LookbackDays,
	}, a.Store, clock, log)

	opts := collector.Options{
		Start:        start,
		End:          end,
		Interval:     cfg.Collection.Interval,
		LookbackDays: cfg.Collection.LookbackDays,
		CallDelay:    cfg.Collection.CallDelay,
	}
	deps := collector.Deps{Tracker: a.Tracker, Store: a.Store, Clock: clock, Log: log}

	schemas := make(map[string]dataset.Schema, len(cfg.Markets))
	for _, m := range cfg.Markets {
		if err, ok := unavailable[m.Provider]; ok {
			entry.WithField("market", m.Name).WithError(err).Error("提供商不可用，该市场将被跳过")
			a.Manager.AddUnavailable(m.Name, err)
			continue
		}
		p, err := a.Providers.Get(m.Provider)
		if err != nil {
			a.Manager.AddUnavailable(m.Name, err)
			continue
		}
		market := collector.NewMarket(m.Name, p)
		schemas[m.Name] = market.Schema
		a.Manager.AddMarket(collector.NewMarketCollector(market, deps, opts))
	}

	if err := a.addHooks(ctx, cfg, schemas, clock, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// registerProviders 注册三个上游提供商并套上装饰器，返回因缺少凭证而不可用的提供商
func registerProviders(pm *provider.ProviderManager, cfg *config.Config, log logrus.FieldLogger) map[string]error {
	unavailable := make(map[string]error)
	register := func(name string, p core.SeriesProvider, err error) {
		if err != nil {
			unavailable[name] = err
			return
		}
		if err := pm.Register(name, decorators.Decorate(p, cfg.Decorators, log)); err != nil {
			unavailable[name] = err
		}
	}

	register(yahoo.Name, yahoo.NewProvider(cfg.Providers.Yahoo, log), nil)

	bn, err := binance.NewProvider(cfg.Providers.Binance, log)
	register(binance.Name, bn, err)

	fr, err := fred.NewProvider(cfg.Providers.FRED, log)
	register(fred.Name, fr, err)

	return unavailable
}

func (a *App) addHooks(ctx context.Context, cfg *config.Config, schemas map[string]dataset.Schema, clock timing.TimeService, log logrus.FieldLogger) error {
	a.Reporter = report.NewReporter(report.Config{Dir: cfg.Paths.ReportDir, LogFile: cfg.Logger.File}, a.Store, schemas, log)
	a.Manager.AddRunHook(a.Reporter)

	a.Manager.AddRunHook(dictionary.NewGenerator(dictionary.Config{
		Path:     cfg.DictionaryPath(),
		XLSXPath: cfg.Paths.DictionaryXLSX,
	}, a.Store, a.Tracker, schemas, clock, log))

	if cfg.Metrics.Enabled {
		rec := metrics.NewRecorder(cfg.Metrics, log)
		a.Manager.AddMarketHook(rec)
		a.Manager.AddRunHook(rec)
	}

	if cfg.Sinks.Redis.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := export.NewRedisClient(pingCtx, cfg.Sinks.Redis)
		cancel()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		sink := export.NewRedisSink(client, cfg.Sinks.Redis, clock, log)
		a.Manager.AddMarketHook(sink)
		a.Manager.AddRunHook(sink)
	}

	if cfg.Sinks.Influx.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := export.NewInfluxClient(pingCtx, cfg.Sinks.Influx)
		cancel()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		writer := client.WriteAPIBlocking(cfg.Sinks.Influx.Org, cfg.Sinks.Influx.Bucket)
		a.Manager.AddMarketHook(export.NewInfluxSink(writer, cfg.Sinks.Influx, log))
	}
	return nil
}

// Run 执行一次完整采集
func (a *App) Run(ctx context.Context) (*collector.Run, error) {
	a.Reporter.Mark()
	return a.Manager.Run(ctx)
}

// Close 释放外部连接
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Providers.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return fmt.Errorf("关闭资源失败: %w", firstErr)
	}
	return nil
}
