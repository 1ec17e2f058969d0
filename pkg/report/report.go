// Package report 生成每次运行的文本报告 reports/collection_report_YYYYMMDD.txt。
package report

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fundbot/pkg/collector"
	"fundbot/pkg/dataset"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/logger"
	"fundbot/pkg/storage"
	"fundbot/pkg/timing"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DatasetReader 读取市场数据集
type DatasetReader interface {
	Exists(market string) bool
	Path(market string) string
	Load(schema dataset.Schema) ([]dataset.Row, error)
}

// Config 报告配置
type Config struct {
	Dir     string `mapstructure:"dir"`      // 报告目录
	LogFile string `mapstructure:"log_file"` // 运行日志，从中提取错误行
}

// Reporter 运行结束后写出文本报告，实现 collector.RunHook
type Reporter struct {
	config  Config
	store   DatasetReader
	schemas map[string]dataset.Schema
	printer *message.Printer
	log     *logrus.Entry

	// 本次运行开始时日志文件的大小，只扫描其后的内容
	logOffset int64
}

// NewReporter 创建报告生成器，并记录当前日志文件的位置
func NewReporter(config Config, store DatasetReader, schemas map[string]dataset.Schema, log logrus.FieldLogger) *Reporter {
	r := &Reporter{
		config:  config,
		store:   store,
		schemas: schemas,
		printer: message.NewPrinter(language.English),
		log:     logger.WithComponent(log, "report"),
	}
	r.Mark()
	return r
}

// Mark 记录日志文件当前位置
func (r *Reporter) Mark() {
	r.logOffset = 0
	if r.config.LogFile == "" {
		return
	}
	if fi, err := os.Stat(r.config.LogFile); err == nil {
		r.logOffset = fi.Size()
	}
}

// Name 回调名称
func (r *Reporter) Name() string { return "report" }

// Path 返回指定运行的报告文件路径
func (r *Reporter) Path(run *collector.Run) string {
	return filepath.Join(r.config.Dir, fmt.Sprintf("collection_report_%s.txt", run.FinishedAt.Format("20060102")))
}

// AfterRun 写出报告
func (r *Reporter) AfterRun(ctx context.Context, run *collector.Run) error {
	if err := os.MkdirAll(r.config.Dir, 0755); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "create report dir", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, run); err != nil {
		return err
	}

	path := r.Path(run)
	err := storage.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return apperr.WrapError(apperr.CodePersistence, "write report "+path, err)
	}
	r.log.WithField("path", path).Info("运行报告已生成")
	return nil
}

// Render 把报告写入 w
func (r *Reporter) Render(w io.Writer, run *collector.Run) error {
	p := r.printer
	bw := bufio.NewWriter(w)

	p.Fprintf(bw, "数据采集报告 (%s)\n", timing.FormatDate(run.FinishedAt))
	p.Fprintf(bw, "%s\n\n", strings.Repeat("=", 50))
	p.Fprintf(bw, "运行 ID: %s\n", run.ID)
	p.Fprintf(bw, "采集区间: %s ~ %s\n", timing.FormatDate(run.Window.Start), timing.FormatDate(run.Window.End))
	p.Fprintf(bw, "采集周期: %s\n", run.Interval)
	if len(run.IntervalFallbacks) > 0 {
		vocabs := make([]string, 0, len(run.IntervalFallbacks))
		for v := range run.IntervalFallbacks {
			vocabs = append(vocabs, v)
		}
		sort.Strings(vocabs)
		for _, v := range vocabs {
			p.Fprintf(bw, "周期回退: %s 不支持该周期，使用 %s\n", v, run.IntervalFallbacks[v])
		}
	}
	p.Fprintf(bw, "成功市场: %d / %d\n\n", run.Succeeded(), len(run.Results))

	for _, res := range run.Results {
		if !r.store.Exists(res.Market) {
			p.Fprintf(bw, "%s: 数据文件不存在\n", res.Market)
			continue
		}
		rows, err := r.countRows(res)
		if err != nil {
			p.Fprintf(bw, "%s: 数据文件存在 (%s)，读取失败: %v\n", res.Market, r.store.Path(res.Market), err)
			continue
		}
		p.Fprintf(bw, "%s: 数据文件存在 (%s)，共 %d 行，本次新增 %d 行",
			res.Market, r.store.Path(res.Market), rows, res.NewRows)
		if res.EffectiveStart != nil {
			p.Fprintf(bw, "，实际起始日期 %s (早于该日期的数据源不提供)", timing.FormatDate(*res.EffectiveStart))
		}
		p.Fprintf(bw, "\n")
	}

	var failed []collector.Result
	for _, res := range run.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	if len(failed) > 0 {
		p.Fprintf(bw, "\n失败的市场:\n")
		for _, res := range failed {
			p.Fprintf(bw, "- %s [%s]: %s\n", res.Market, res.State, res.ErrMessage())
		}
	}

	lines, err := r.errorLines()
	if err != nil {
		r.log.WithError(err).Warn("读取运行日志失败")
	}
	if len(lines) > 0 {
		p.Fprintf(bw, "\n发生的错误:\n")
		for _, line := range lines {
			p.Fprintf(bw, "- %s\n", line)
		}
	}
	return bw.Flush()
}

func (r *Reporter) countRows(res collector.Result) (int, error) {
	if res.Success {
		return res.RowsTotal, nil
	}
	schema, ok := r.schemas[res.Market]
	if !ok {
		schema = dataset.NewSchema(res.Market, nil)
	}
	rows, err := r.store.Load(schema)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// errorLines 从运行日志中提取本次运行写入的错误行
func (r *Reporter) errorLines() ([]string, error) {
	if r.config.LogFile == "" {
		return nil, nil
	}
	f, err := os.Open(r.config.LogFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.Size() >= r.logOffset {
		if _, err := f.Seek(r.logOffset, io.SeekStart); err != nil {
			return nil, err
		}
	}

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if IsErrorLine(line) {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// IsErrorLine 判断日志行是否为错误级别，兼容 text 与 json 两种格式
func IsErrorLine(line string) bool {
	return strings.Contains(line, "level=error") ||
		strings.Contains(line, `"level":"error"`) ||
		strings.Contains(line, "level=fatal") ||
		strings.Contains(line, `"level":"fatal"`)
}
