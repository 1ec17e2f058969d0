package dataset

import (
	"sort"
	"time"

	"fundbot/pkg/timing"
)

// 通用字段名
const (
	FieldOpen        = "open"
	FieldHigh        = "high"
	FieldLow         = "low"
	FieldClose       = "close"
	FieldAdjClose    = "adj_close"
	FieldVolume      = "volume"
	FieldQuoteVolume = "quote_volume"
	FieldTrades      = "trades"
	FieldValue       = "value"
)

// Row 数据集中的一行：某个代码在某个日期的一组数值
type Row struct {
	Date   time.Time          `json:"date"`
	ID     string             `json:"id"`
	Values map[string]float64 `json:"values"`
}

// Key 行的唯一键 (date, id)
type Key struct {
	Date string
	ID   string
}

// Key 返回行的去重键，日线及以上周期按天比较
func (r Row) Key() Key {
	return Key{Date: timing.FormatStamp(r.Date), ID: r.ID}
}

// Schema 描述某个市场数据集包含的字段
type Schema struct {
	Market string   `json:"market"`
	Fields []string `json:"fields"`
}

// 预定义的行结构
var (
	// OHLCVFields 行情历史类数据源（股票指数、ETF、外汇）
	OHLCVFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldAdjClose, FieldVolume}
	// KlineFields 交易所K线
	KlineFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldQuoteVolume, FieldTrades}
	// SeriesFields 经济数据序列
	SeriesFields = []string{FieldValue}
)

// NewSchema 创建市场行结构
func NewSchema(market string, fields []string) Schema {
	return Schema{Market: market, Fields: append([]string(nil), fields...)}
}

// Has 判断字段是否属于该结构
func (s Schema) Has(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// SortRows 按 (id, date) 稳定排序
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ID != rows[j].ID {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

// DateRange 返回行集合的最早和最晚日期，空集合返回零值
func DateRange(rows []Row) (first, last time.Time) {
	for i, r := range rows {
		if i == 0 || r.Date.Before(first) {
			first = r.Date
		}
		if i == 0 || r.Date.After(last) {
			last = r.Date
		}
	}
	return first, last
}

// UniqueIDs 返回按字典序排列的代码集合
func UniqueIDs(rows []Row) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, r := range rows {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}
