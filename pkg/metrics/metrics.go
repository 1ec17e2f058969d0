// Package metrics 记录每次运行的采集指标，并以 node_exporter textfile 格式写出。
package metrics

import (
	"context"
	"os"
	"path/filepath"

	"fundbot/pkg/collector"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const namespace = "fundbot"

// Config 指标输出配置
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile" validate:"required_if=Enabled true"`
}

// Recorder 采集指标记录器，同时实现 collector.MarketHook 与 collector.RunHook
type Recorder struct {
	config   Config
	registry *prometheus.Registry
	log      *logrus.Entry

	success     *prometheus.GaugeVec
	rowsTotal   *prometheus.GaugeVec
	newRows     *prometheus.GaugeVec
	rowsFetched *prometheus.GaugeVec
	idsFailed   *prometheus.GaugeVec
	idsEmpty    *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	lastFetch   *prometheus.GaugeVec
	succeeded   prometheus.Gauge
	finished    prometheus.Gauge
	runDuration prometheus.Gauge
}

// NewRecorder 创建指标记录器，使用独立的 Registry
func NewRecorder(config Config, log logrus.FieldLogger) *Recorder {
	r := &Recorder{
		config:   config,
		registry: prometheus.NewRegistry(),
		log:      logger.WithComponent(log, "metrics"),
	}

	market := []string{"market"}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, market)
	}
	r.success = gauge("market_success", "1 if the last collection of the market succeeded")
	r.rowsTotal = gauge("market_rows_total", "Rows in the market dataset after the last collection")
	r.newRows = gauge("market_new_rows", "Rows added by the last collection")
	r.rowsFetched = gauge("market_rows_fetched", "Rows returned by upstream in the last collection")
	r.idsFailed = gauge("market_ids_failed", "Ids whose upstream call failed in the last collection")
	r.idsEmpty = gauge("market_ids_empty", "Ids that returned no rows in the last collection")
	r.duration = gauge("market_duration_seconds", "Duration of the last collection of the market")
	r.lastFetch = gauge("market_window_end_timestamp_seconds", "End of the window collected by the last successful run")

	r.succeeded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "run_markets_succeeded", Help: "Markets that succeeded in the last run",
	})
	r.finished = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "run_finished_timestamp_seconds", Help: "Unix time the last run finished",
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "run_duration_seconds", Help: "Duration of the last run",
	})

	r.registry.MustRegister(
		r.success, r.rowsTotal, r.newRows, r.rowsFetched, r.idsFailed, r.idsEmpty, r.duration, r.lastFetch,
		r.succeeded, r.finished, r.runDuration,
	)
	return r
}

// Registry 返回内部 Registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Name 回调名称
func (r *Recorder) Name() string { return "metrics" }

// AfterMarket 记录单个市场的结果
func (r *Recorder) AfterMarket(ctx context.Context, res collector.Result) error {
	m := res.Market
	ok := 0.0
	if res.Success {
		ok = 1
		r.lastFetch.WithLabelValues(m).Set(float64(res.Window.End.Unix()))
	}
	r.success.WithLabelValues(m).Set(ok)
	r.rowsTotal.WithLabelValues(m).Set(float64(res.RowsTotal))
	r.newRows.WithLabelValues(m).Set(float64(res.NewRows))
	r.rowsFetched.WithLabelValues(m).Set(float64(res.RowsFetched))
	r.idsFailed.WithLabelValues(m).Set(float64(len(res.IDsFailed)))
	r.idsEmpty.WithLabelValues(m).Set(float64(len(res.IDsEmpty)))
	r.duration.WithLabelValues(m).Set(res.Duration.Seconds())
	return nil
}

// AfterRun 记录整次运行并写出 textfile
func (r *Recorder) AfterRun(ctx context.Context, run *collector.Run) error {
	r.succeeded.Set(float64(run.Succeeded()))
	r.finished.Set(float64(run.FinishedAt.Unix()))
	r.runDuration.Set(run.FinishedAt.Sub(run.StartedAt).Seconds())

	if !r.config.Enabled || r.config.Textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.config.Textfile), 0755); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "create metrics dir", err)
	}
	if err := prometheus.WriteToTextfile(r.config.Textfile, r.registry); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "write metrics "+r.config.Textfile, err)
	}
	r.log.WithField("path", r.config.Textfile).Debug("指标已写出")
	return nil
}
