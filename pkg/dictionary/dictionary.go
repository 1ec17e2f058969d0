// Package dictionary 根据数据目录中的数据集生成数据字典（data_dictionary.json，可选 xlsx）。
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"fundbot/pkg/collector"
	"fundbot/pkg/dataset"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/logger"
	"fundbot/pkg/storage"
	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"

	"github.com/sirupsen/logrus"
)

// Version 数据字典格式版本
const Version = "1.0.0"

// DatasetReader 读取市场数据集
type DatasetReader interface {
	Path(market string) string
	Load(schema dataset.Schema) ([]dataset.Row, error)
	Codec() dataset.Codec
	Dir() string
}

// RecordReader 读取进度记录
type RecordReader interface {
	Load(market string) (tracker.Record, error)
}

// Config 数据字典输出配置
type Config struct {
	Path     string `mapstructure:"path"`      // JSON 输出路径
	XLSXPath string `mapstructure:"xlsx_path"` // xlsx 输出路径，为空时不生成
}

// Dictionary 数据字典
type Dictionary struct {
	Metadata           Metadata               `json:"metadata"`
	DataCollectionInfo CollectionInfo         `json:"data_collection_info"`
	Markets            map[string]MarketEntry `json:"markets"`
	DataPipelineInfo   PipelineInfo           `json:"data_pipeline_info"`
}

// Metadata 字典元信息
type Metadata struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	LastUpdated string `json:"last_updated"`
}

// CollectionInfo 采集区间与格式
type CollectionInfo struct {
	TimeRange  TimeRange `json:"time_range"`
	DataFormat string    `json:"data_format"`
}

// TimeRange 采集区间
type TimeRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// PipelineInfo 采集与存储方式
type PipelineInfo struct {
	Collection struct {
		Method          string `json:"method"`
		DataFormat      string `json:"data_format"`
		APICallInterval string `json:"api_call_interval"`
	} `json:"collection"`
	Storage struct {
		Location   string `json:"location"`
		FileNaming string `json:"file_naming"`
	} `json:"storage"`
}

// MarketEntry 单个市场的字典条目
type MarketEntry struct {
	Description  string   `json:"description"`
	FileName     string   `json:"file_name"`
	DataAnalysis Analysis `json:"data_analysis"`
	FileInfo     FileInfo `json:"file_info"`
}

// FileInfo 数据文件信息
type FileInfo struct {
	Path         string `json:"path"`
	LastModified string `json:"last_modified"`
}

// Analysis 数据集分析结果
type Analysis struct {
	Columns             []string               `json:"columns"`
	RowCount            int                    `json:"row_count"`
	DateRange           DateRange              `json:"date_range"`
	UniqueIDs           int                    `json:"unique_ids"`
	ColumnStats         map[string]ColumnStats `json:"column_stats"`
	CollectionFrequency string                 `json:"collection_frequency"`
	APICallInterval     string                 `json:"api_call_interval"`
	LastFetchDate       *string                `json:"last_fetch_date"`
}

// DateRange 数据集中的最早与最晚日期
type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// ColumnStats 数值列统计
type ColumnStats struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	NullCount int     `json:"null_count"`
}

// Generator 数据字典生成器，实现 collector.RunHook
type Generator struct {
	config  Config
	store   DatasetReader
	records RecordReader
	schemas map[string]dataset.Schema
	clock   timing.TimeService
	log     *logrus.Entry
}

// NewGenerator 创建数据字典生成器
func NewGenerator(config Config, store DatasetReader, records RecordReader, schemas map[string]dataset.Schema, clock timing.TimeService, log logrus.FieldLogger) *Generator {
	if clock == nil {
		clock = &timing.SystemTimeService{}
	}
	return &Generator{
		config:  config,
		store:   store,
		records: records,
		schemas: schemas,
		clock:   clock,
		log:     logger.WithComponent(log, "dictionary"),
	}
}

// Name 回调名称
func (g *Generator) Name() string { return "dictionary" }

// AfterRun 根据本次运行的汇总生成并保存数据字典
func (g *Generator) AfterRun(ctx context.Context, run *collector.Run) error {
	d := g.Build(run.Summary)
	if err := g.Save(d); err != nil {
		return err
	}
	g.log.WithFields(logrus.Fields{"path": g.config.Path, "markets": len(d.Markets)}).Info("数据字典已生成")
	return nil
}

// Build 为汇总中文件存在的每个市场生成字典条目，读取失败的市场会被跳过
func (g *Generator) Build(summary collector.Summary) *Dictionary {
	format := g.store.Codec().Extension()
	d := &Dictionary{
		Metadata: Metadata{
			Description: "金融市场数据字典",
			Version:     Version,
			LastUpdated: timing.FormatDate(g.clock.Now()),
		},
		DataCollectionInfo: CollectionInfo{
			TimeRange:  TimeRange{StartDate: summary.StartDate, EndDate: summary.EndDate},
			DataFormat: format,
		},
		Markets: make(map[string]MarketEntry),
	}
	d.DataPipelineInfo.Collection.Method = "API 调用"
	d.DataPipelineInfo.Collection.DataFormat = format
	d.DataPipelineInfo.Collection.APICallInterval = summary.APICallInterval
	d.DataPipelineInfo.Storage.Location = g.store.Dir()
	d.DataPipelineInfo.Storage.FileNaming = "{market_name}." + format

	for _, market := range sortedKeys(summary.Markets) {
		if !summary.Markets[market].FileExists {
			continue
		}
		entry, err := g.entry(market, summary)
		if err != nil {
			g.log.WithField("market", market).WithError(err).Warn("读取数据集失败，跳过")
			continue
		}
		d.Markets[market] = entry
	}
	return d
}

func (g *Generator) entry(market string, summary collector.Summary) (MarketEntry, error) {
	schema, ok := g.schemas[market]
	if !ok {
		return MarketEntry{}, fmt.Errorf("unknown schema for market %s", market)
	}
	rows, err := g.store.Load(schema)
	if err != nil {
		return MarketEntry{}, err
	}

	analysis := Analyze(schema, rows)
	analysis.CollectionFrequency = summary.DataCollectionFrequency
	analysis.APICallInterval = summary.APICallInterval
	if g.records != nil {
		if rec, err := g.records.Load(market); err == nil && rec.LastFetchDate != nil {
			s := timing.FormatDate(*rec.LastFetchDate)
			analysis.LastFetchDate = &s
		}
	}

	path := g.store.Path(market)
	info := FileInfo{Path: path}
	if fi, err := os.Stat(path); err == nil {
		info.LastModified = fi.ModTime().Format(collector.SummaryTimeLayout)
	}

	return MarketEntry{
		Description:  market + " 市场数据",
		FileName:     fmt.Sprintf("%s.%s", market, g.store.Codec().Extension()),
		DataAnalysis: analysis,
		FileInfo:     info,
	}, nil
}

// Analyze 统计数据集的列、行数、日期范围、代码数以及每个数值列的统计量。
// 标准差为样本标准差，缺失值计入 null_count 且不参与统计。
func Analyze(schema dataset.Schema, rows []dataset.Row) Analysis {
	a := Analysis{
		Columns:     append([]string{"date", "id"}, schema.Fields...),
		RowCount:    len(rows),
		UniqueIDs:   len(dataset.UniqueIDs(rows)),
		ColumnStats: make(map[string]ColumnStats, len(schema.Fields)),
	}
	if len(rows) > 0 {
		first, last := dataset.DateRange(rows)
		start, end := timing.FormatDate(first), timing.FormatDate(last)
		a.DateRange = DateRange{Start: &start, End: &end}
	}

	for _, field := range schema.Fields {
		values := make([]float64, 0, len(rows))
		for _, r := range rows {
			v, ok := r.Values[field]
			if !ok || math.IsNaN(v) {
				continue
			}
			values = append(values, v)
		}
		a.ColumnStats[field] = columnStats(values, len(rows)-len(values))
	}
	return a
}

func columnStats(values []float64, nulls int) ColumnStats {
	s := ColumnStats{NullCount: nulls}
	if len(values) == 0 {
		s.Min, s.Max, s.Mean, s.Std = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}

	s.Min, s.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(values))

	if len(values) < 2 {
		s.Std = math.NaN()
		return s
	}
	var sq float64
	for _, v := range values {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.Std = math.Sqrt(sq / float64(len(values)-1))
	return s
}

// MarshalJSON NaN 输出为 null
func (s ColumnStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min       *float64 `json:"min"`
		Max       *float64 `json:"max"`
		Mean      *float64 `json:"mean"`
		Std       *float64 `json:"std"`
		NullCount int      `json:"null_count"`
	}{nullable(s.Min), nullable(s.Max), nullable(s.Mean), nullable(s.Std), s.NullCount})
}

// UnmarshalJSON null 读回为 NaN
func (s *ColumnStats) UnmarshalJSON(data []byte) error {
	var raw struct {
		Min       *float64 `json:"min"`
		Max       *float64 `json:"max"`
		Mean      *float64 `json:"mean"`
		Std       *float64 `json:"std"`
		NullCount int      `json:"null_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ColumnStats{
		Min:       orNaN(raw.Min),
		Max:       orNaN(raw.Max),
		Mean:      orNaN(raw.Mean),
		Std:       orNaN(raw.Std),
		NullCount: raw.NullCount,
	}
	return nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Save 原子地写出 JSON，配置了 xlsx 路径时同时导出工作簿
func (g *Generator) Save(d *Dictionary) error {
	if err := storage.WriteJSONAtomic(g.config.Path, d); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "write data dictionary "+g.config.Path, err)
	}
	if g.config.XLSXPath == "" {
		return nil
	}
	if err := WriteWorkbook(g.config.XLSXPath, d); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "write data dictionary workbook "+g.config.XLSXPath, err)
	}
	return nil
}

// Load 读取已生成的数据字典
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Dictionary
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse data dictionary %s: %w", path, err)
	}
	return &d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
