package collector

import (
	"context"
	"sort"
	"time"

	apperr "fundbot/pkg/error"
	"fundbot/pkg/interval"
	"fundbot/pkg/limiter"
	"fundbot/pkg/logger"
	"fundbot/pkg/timing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MarketOrder 市场的固定采集顺序，未列出的市场排在最后
var MarketOrder = []string{"stocks", "commodities", "bonds", "forex", "crypto", "real_estate"}

// MarketHook 每个市场采集结束后调用
type MarketHook interface {
	Name() string
	AfterMarket(ctx context.Context, res Result) error
}

// RunHook 全部市场采集结束、汇总文件写入后调用
type RunHook interface {
	Name() string
	AfterRun(ctx context.Context, run *Run) error
}

// Run 一次完整运行的记录
type Run struct {
	ID                string            `json:"id"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Window            Window            `json:"window"`
	Interval          string            `json:"interval"`
	IntervalFallbacks map[string]string `json:"interval_fallbacks,omitempty"`
	Results           []Result          `json:"results"`
	Summary           Summary           `json:"summary"`
	SummaryPath       string            `json:"summary_path"`
}

// Succeeded 成功的市场数
func (r *Run) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// Result 返回指定市场的结果
func (r *Run) Result(market string) (Result, bool) {
	for _, res := range r.Results {
		if res.Market == market {
			return res, true
		}
	}
	return Result{}, false
}

// ManagerConfig Manager 配置
type ManagerConfig struct {
	SummaryPath  string
	MarketDelay  time.Duration // 相邻两个市场之间的等待时间
	Interval     string
	Start        *time.Time
	End          *time.Time
	LookbackDays int
}

type slot struct {
	name      string
	collector *MarketCollector
	setupErr  error
}

// Manager 按固定顺序运行全部市场采集器，单个市场的失败（包括 panic）不影响其他市场
type Manager struct {
	config      ManagerConfig
	store       DatasetStore
	clock       timing.TimeService
	log         *logrus.Entry
	slots       []slot
	marketHooks []MarketHook
	runHooks    []RunHook
}

// NewManager 创建 Manager
func NewManager(config ManagerConfig, store DatasetStore, clock timing.TimeService, log logrus.FieldLogger) *Manager {
	if clock == nil {
		clock = &timing.SystemTimeService{}
	}
	if config.Interval == "" {
		config.Interval = "1mo"
	}
	return &Manager{
		config: config,
		store:  store,
		clock:  clock,
		log:    logger.WithComponent(log, "manager"),
	}
}

// AddMarket 添加市场采集器
func (m *Manager) AddMarket(c *MarketCollector) {
	m.slots = append(m.slots, slot{name: c.Name(), collector: c})
}

// AddUnavailable 添加无法构造的市场（如缺少凭证），运行时直接记为失败
func (m *Manager) AddUnavailable(market string, err error) {
	m.slots = append(m.slots, slot{name: market, setupErr: err})
}

// AddMarketHook 添加市场级回调
func (m *Manager) AddMarketHook(h MarketHook) {
	m.marketHooks = append(m.marketHooks, h)
}

// AddRunHook 添加运行级回调
func (m *Manager) AddRunHook(h RunHook) {
	m.runHooks = append(m.runHooks, h)
}

// Markets 按采集顺序返回市场名称
func (m *Manager) Markets() []string {
	m.sortSlots()
	names := make([]string, len(m.slots))
	for i, s := range m.slots {
		names[i] = s.name
	}
	return names
}

func (m *Manager) sortSlots() {
	rank := func(name string) int {
		for i, n := range MarketOrder {
			if n == name {
				return i
			}
		}
		return len(MarketOrder)
	}
	sort.SliceStable(m.slots, func(i, j int) bool {
		return rank(m.slots[i].name) < rank(m.slots[j].name)
	})
}

// Run 运行全部市场。返回的错误仅表示汇总文件写入失败，各市场的错误记录在 Run.Results 中。
func (m *Manager) Run(ctx context.Context) (*Run, error) {
	m.sortSlots()

	plan := interval.Resolve(m.config.Interval)
	run := &Run{
		ID:                uuid.NewString(),
		StartedAt:         m.clock.Now(),
		Window:            DefaultWindow(m.config.Start, m.config.End, m.config.LookbackDays, m.clock.Now()),
		Interval:          plan.Applied(),
		IntervalFallbacks: plan.Fallbacks(),
		SummaryPath:       m.config.SummaryPath,
	}
	log := m.log.WithField("run_id", run.ID)
	if run.IntervalFallbacks != nil {
		log.WithFields(logrus.Fields{
			"interval":  plan.Token,
			"applied":   run.Interval,
			"fallbacks": run.IntervalFallbacks,
		}).Warn("采集周期部分数据源不支持，已回退到日线")
	}
	log.Infof("Starting data collection from %s to %s", timing.FormatDate(run.Window.Start), timing.FormatDate(run.Window.End))

	pacer := limiter.NewPacer(m.config.MarketDelay)
	for _, s := range m.slots {
		if ctx.Err() != nil {
			run.Results = append(run.Results, Result{RunID: run.ID, Market: s.name, State: StateInit, Err: ctx.Err()})
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			run.Results = append(run.Results, Result{RunID: run.ID, Market: s.name, State: StateInit, Err: err})
			continue
		}

		res := m.runMarket(ctx, s, log)
		res.RunID = run.ID
		run.Results = append(run.Results, res)

		switch {
		case res.Success:
			log.WithField("market", s.name).Infof("Successfully collected %s data", s.name)
		default:
			log.WithField("market", s.name).WithError(res.Err).Errorf("Failed to collect %s data", s.name)
		}

		for _, h := range m.marketHooks {
			if err := h.AfterMarket(ctx, res); err != nil {
				log.WithFields(logrus.Fields{"hook": h.Name(), "market": s.name}).WithError(err).Warn("市场回调执行失败")
			}
		}
	}

	run.FinishedAt = m.clock.Now()
	run.Summary = BuildSummary(run.Window, run.Interval, m.config.MarketDelay, m.Markets(), m.store, run.FinishedAt)
	run.Summary.IntervalFallbacks = run.IntervalFallbacks

	var summaryErr error
	if m.config.SummaryPath != "" {
		if err := WriteSummary(m.config.SummaryPath, run.Summary); err != nil {
			summaryErr = apperr.WrapError(apperr.CodePersistence, "write summary "+m.config.SummaryPath, err)
			log.WithError(summaryErr).Error("Error writing data range summary")
		}
	}

	for _, h := range m.runHooks {
		if err := h.AfterRun(ctx, run); err != nil {
			log.WithField("hook", h.Name()).WithError(err).Warn("运行回调执行失败")
		}
	}

	log.WithFields(logrus.Fields{
		"succeeded": run.Succeeded(),
		"markets":   len(run.Results),
		"elapsed":   run.FinishedAt.Sub(run.StartedAt).String(),
	}).Info("Data collection finished")
	return run, summaryErr
}

// runMarket 运行单个市场，panic 转换为失败结果
func (m *Manager) runMarket(ctx context.Context, s slot, log *logrus.Entry) (res Result) {
	if s.setupErr != nil {
		return Result{Market: s.name, State: StateInit, Err: s.setupErr}
	}

	defer func() {
		if v := recover(); v != nil {
			err := panicError(s.name, v)
			log.WithField("market", s.name).WithError(err).Error("Error in market collection")
			res = Result{
				Market:   s.name,
				State:    s.collector.State(),
				FilePath: m.store.Path(s.name),
				Err:      err,
			}
		}
	}()

	return s.collector.Run(ctx)
}
