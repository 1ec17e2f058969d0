// Package collector 实现单个市场的增量采集（MarketCollector）以及按固定顺序驱动全部市场的 Manager。
//
// 单个市场的一次采集按以下状态推进：
//
//	INIT → LOAD_TRACKER → RESOLVE_WINDOW → FETCH_EACH_ID → MERGE → PERSIST → ADVANCE_TRACKER → DONE
//
// 数据集总是先于进度记录落盘，中途中断时以最后一次原子写入的文件为准。
package collector

import (
	"context"
	"time"

	"fundbot/pkg/dataset"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/interval"
	"fundbot/pkg/limiter"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"
	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"

	"github.com/sirupsen/logrus"
)

// State 采集状态
type State string

const (
	StateInit           State = "INIT"
	StateLoadTracker    State = "LOAD_TRACKER"
	StateResolveWindow  State = "RESOLVE_WINDOW"
	StateFetchEachID    State = "FETCH_EACH_ID"
	StateMerge          State = "MERGE"
	StatePersist        State = "PERSIST"
	StateAdvanceTracker State = "ADVANCE_TRACKER"
	StateDone           State = "DONE"
)

// ProgressStore 进度存储
type ProgressStore interface {
	Load(market string) (tracker.Record, error)
	Advance(market string, end time.Time) error
}

// DatasetStore 数据集存储
type DatasetStore interface {
	Load(schema dataset.Schema) ([]dataset.Row, error)
	Save(schema dataset.Schema, rows []dataset.Row) error
	Exists(market string) bool
	Path(market string) string
}

// Market 一个市场的采集定义
type Market struct {
	Name     string
	Provider core.SeriesProvider
	Schema   dataset.Schema
}

// NewMarket 用提供商的字段创建市场定义
func NewMarket(name string, provider core.SeriesProvider) Market {
	return Market{
		Name:     name,
		Provider: provider,
		Schema:   dataset.NewSchema(name, provider.Fields()),
	}
}

// Options 单次运行参数
type Options struct {
	Start        *time.Time    // 显式起始日期，优先于进度记录
	End          *time.Time    // 显式结束日期，默认今天
	Interval     string        // 统一周期标记，默认 1mo
	LookbackDays int           // 没有进度记录时的回溯天数
	CallDelay    time.Duration // 相邻两次上游调用的最小间隔
}

// Deps 采集器依赖
type Deps struct {
	Tracker ProgressStore
	Store   DatasetStore
	Clock   timing.TimeService
	Log     logrus.FieldLogger
}

// Result 单个市场一次采集的结果
type Result struct {
	RunID          string        `json:"run_id,omitempty"`
	Market         string        `json:"market"`
	Success        bool          `json:"success"`
	State          State         `json:"state"`                     // 结束时所处的状态
	Window         Window        `json:"window"`
	EffectiveStart *time.Time    `json:"effective_start,omitempty"` // 提供商截断后的实际起始日期
	Interval       string        `json:"interval"`
	RowsFetched    int           `json:"rows_fetched"`
	RowsTotal      int           `json:"rows_total"`
	NewRows        int           `json:"new_rows"`
	IDsOK          []string      `json:"ids_ok"`
	IDsEmpty       []string      `json:"ids_empty"`
	IDsFailed      []IDFailure   `json:"ids_failed"`
	FilePath       string        `json:"file_path"`
	Duration       time.Duration `json:"duration"`
	Err            error         `json:"-"`

	// Rows 本次采集到的行，供下游输出使用
	Rows []dataset.Row `json:"-"`
}

// ErrMessage 返回错误信息，没有错误时为空
func (r Result) ErrMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarketCollector 单个市场的采集器
type MarketCollector struct {
	market  Market
	tracker ProgressStore
	store   DatasetStore
	clock   timing.TimeService
	pacer   *limiter.Pacer
	opts    Options
	log     *logrus.Entry
	state   State
}

// NewMarketCollector 创建市场采集器
func NewMarketCollector(market Market, deps Deps, opts Options) *MarketCollector {
	if deps.Clock == nil {
		deps.Clock = &timing.SystemTimeService{}
	}
	// 与 Manager 使用同一结果：完全不受支持的周期按日线采集
	opts.Interval = interval.Resolve(opts.Interval).Applied()
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	return &MarketCollector{
		market:  market,
		tracker: deps.Tracker,
		store:   deps.Store,
		clock:   deps.Clock,
		pacer:   limiter.NewPacer(opts.CallDelay),
		opts:    opts,
		log:     logger.WithComponent(deps.Log, "collector").WithField("market", market.Name),
		state:   StateInit,
	}
}

// Name 市场名称
func (c *MarketCollector) Name() string {
	return c.market.Name
}

// State 当前状态
func (c *MarketCollector) State() State {
	return c.state
}

func (c *MarketCollector) transition(s State) {
	c.state = s
	c.log.WithField("state", string(s)).Debug("状态变更")
}

// Run 执行一次完整采集。错误不会向外传播，全部记录在 Result 中。
func (c *MarketCollector) Run(ctx context.Context) (res Result) {
	started := c.clock.Now()
	res = Result{
		Market:   c.market.Name,
		Interval: c.opts.Interval,
		FilePath: c.store.Path(c.market.Name),
	}
	c.transition(StateInit)

	defer func() {
		res.State = c.state
		res.Duration = c.clock.Now().Sub(started)
	}()

	fail := func(err error) Result {
		res.Err = err
		c.log.WithField("state", string(c.state)).WithError(err).Errorf("Error collecting %s data", c.market.Name)
		return res
	}

	// LOAD_TRACKER
	c.transition(StateLoadTracker)
	rec, err := c.tracker.Load(c.market.Name)
	if err != nil {
		return fail(err)
	}
	if len(rec.IDs) == 0 {
		return fail(apperr.NewError(apperr.CodeConfiguration, "no ids tracked for market "+c.market.Name))
	}

	// RESOLVE_WINDOW
	c.transition(StateResolveWindow)
	res.Window = ResolveWindow(rec, c.opts.Start, c.opts.End, c.opts.LookbackDays, c.clock.Now())
	if res.Window.Empty() {
		return fail(emptyWindow(c.market.Name, res.Window))
	}
	if eff, clamped := core.EffectiveStart(c.market.Provider, res.Window.Start); clamped {
		res.EffectiveStart = &eff
		c.log.WithFields(logrus.Fields{
			"requested": timing.FormatDate(res.Window.Start),
			"effective": timing.FormatDate(eff),
		}).Warn("起始日期早于提供商最早可查询日期，实际从截断后的日期开始")
	}
	c.log.WithFields(logrus.Fields{
		"start":    timing.FormatDate(res.Window.Start),
		"end":      timing.FormatDate(res.Window.End),
		"interval": c.opts.Interval,
		"ids":      len(rec.IDs),
	}).Infof("Starting %s data collection", c.market.Name)

	// FETCH_EACH_ID
	c.transition(StateFetchEachID)
	fresh, err := c.fetchAll(ctx, rec.IDs, res.Window, &res)
	if err != nil {
		return fail(err)
	}
	res.RowsFetched = len(fresh)
	res.Rows = fresh
	if len(fresh) == 0 {
		// 没有任何数据时不写数据集也不推进进度
		c.log.WithField("failed", len(res.IDsFailed)).Warn("本次没有采集到任何数据，进度保持不变")
		res.Err = ErrNoRows
		res.RowsTotal = c.countExisting()
		return res
	}

	// MERGE
	c.transition(StateMerge)
	existing, err := c.store.Load(c.market.Schema)
	if err != nil {
		return fail(err)
	}
	merged, added := Merge(existing, fresh)
	res.NewRows = added
	res.RowsTotal = len(merged)

	// PERSIST
	c.transition(StatePersist)
	if err := c.store.Save(c.market.Schema, merged); err != nil {
		return fail(err)
	}

	// ADVANCE_TRACKER
	c.transition(StateAdvanceTracker)
	if err := c.tracker.Advance(c.market.Name, res.Window.End); err != nil {
		return fail(err)
	}

	c.transition(StateDone)
	res.Success = true
	c.log.WithFields(logrus.Fields{
		"rows_fetched": res.RowsFetched,
		"new_rows":     res.NewRows,
		"rows_total":   res.RowsTotal,
		"ids_failed":   len(res.IDsFailed),
	}).Infof("Successfully saved %s data from %s to %s",
		c.market.Name, timing.FormatDate(res.Window.Start), timing.FormatDate(res.Window.End))
	return res
}

// fetchAll 逐个代码顺序请求，单个代码失败不影响其他代码。
// 只有 ctx 被取消时返回错误。
func (c *MarketCollector) fetchAll(ctx context.Context, ids []string, w Window, res *Result) ([]dataset.Row, error) {
	var rows []dataset.Row
	for _, id := range ids {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		entry := c.log.WithField("id", id)
		got, err := c.market.Provider.FetchSeries(ctx, id, w.Start, w.End, c.opts.Interval)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			entry.WithError(err).Errorf("Error fetching %s", id)
			res.IDsFailed = append(res.IDsFailed, newIDFailure(id, err))
			continue
		}
		if len(got) == 0 {
			entry.Warn(emptyResult(c.market.Name, id).Error())
			res.IDsEmpty = append(res.IDsEmpty, id)
			continue
		}

		entry.WithField("rows", len(got)).Infof("Successfully fetched %s from %s to %s",
			id, timing.FormatDate(w.Start), timing.FormatDate(w.End))
		res.IDsOK = append(res.IDsOK, id)
		rows = append(rows, got...)
	}
	return rows, nil
}

func (c *MarketCollector) countExisting() int {
	if !c.store.Exists(c.market.Name) {
		return 0
	}
	rows, err := c.store.Load(c.market.Schema)
	if err != nil {
		return 0
	}
	return len(rows)
}
