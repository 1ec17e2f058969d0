// Package tracker 维护各市场的采集进度（resume_tracker.json）。
//
// 文件格式与历史部署保持兼容：
//
//	{"bonds": {"last_fetch_date": "2024-01-01", "series": ["DGS10", ...]},
//	 "stocks": {"last_fetch_date": null, "symbols": ["^GSPC", ...]}}
//
// 每次写入都是整个文件的原子替换。
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	apperr "fundbot/pkg/error"
	"fundbot/pkg/logger"
	"fundbot/pkg/storage"
	"fundbot/pkg/timing"

	"github.com/sirupsen/logrus"
)

// 代码列表在文件中的键名
const (
	KeySymbols = "symbols"
	KeySeries  = "series"
)

// Defaults 市场首次采集时的初始化参数
type Defaults struct {
	IDKey string   // symbols 或 series
	IDs   []string // 默认代码集合
}

// Record 单个市场的采集进度
type Record struct {
	Market        string     `json:"market"`
	LastFetchDate *time.Time `json:"last_fetch_date"`
	IDs           []string   `json:"ids"`
}

// HasProgress 是否已有成功采集记录
func (r Record) HasProgress() bool {
	return r.LastFetchDate != nil
}

// fileRecord 文件中的记录格式
type fileRecord struct {
	LastFetchDate *string  `json:"last_fetch_date"`
	Symbols       []string `json:"symbols,omitempty"`
	Series        []string `json:"series,omitempty"`
}

// Tracker 采集进度存储
type Tracker struct {
	path     string
	defaults map[string]Defaults
	mu       sync.Mutex
	log      *logrus.Entry
}

// New 创建进度存储
func New(path string, defaults map[string]Defaults, log logrus.FieldLogger) *Tracker {
	if defaults == nil {
		defaults = make(map[string]Defaults)
	}
	return &Tracker{
		path:     path,
		defaults: defaults,
		log:      logger.WithComponent(log, "tracker"),
	}
}

// Path 进度文件路径
func (t *Tracker) Path() string {
	return t.path
}

// Load 返回市场的进度记录；没有记录时返回初始化记录（日期为空，默认代码集合）
func (t *Tracker) Load(market string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	store, err := t.read()
	if err != nil {
		return Record{}, err
	}
	fr, ok := store[market]
	if !ok {
		t.log.WithField("market", market).Debug("进度记录不存在，使用默认代码集合")
		return t.initial(market), nil
	}
	return t.decode(market, fr)
}

// All 返回文件中的全部记录，按市场名排序
func (t *Tracker) All() ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	store, err := t.read()
	if err != nil {
		return nil, err
	}
	markets := make([]string, 0, len(store))
	for m := range store {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	records := make([]Record, 0, len(markets))
	for _, m := range markets {
		rec, err := t.decode(m, store[m])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save 写入市场记录，其他市场的记录保持不变
func (t *Tracker) Save(market string, rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	store, err := t.read()
	if err != nil {
		return err
	}
	store[market] = t.encode(market, rec)

	if err := storage.WriteJSONAtomic(t.path, store); err != nil {
		return apperr.WrapError(apperr.CodePersistence, "save tracker "+t.path, err).
			WithContext("market", market)
	}
	return nil
}

// Advance 把市场的 last_fetch_date 推进到 end。
// 只应在本次采集至少得到一行数据并且数据集已落盘之后调用。
func (t *Tracker) Advance(market string, end time.Time) error {
	rec, err := t.Load(market)
	if err != nil {
		return err
	}
	end = timing.TruncateDay(end)
	rec.LastFetchDate = &end
	if err := t.Save(market, rec); err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{
		"market":          market,
		"last_fetch_date": timing.FormatDate(end),
	}).Info("采集进度已更新")
	return nil
}

func (t *Tracker) initial(market string) Record {
	d := t.defaults[market]
	return Record{Market: market, IDs: append([]string(nil), d.IDs...)}
}

func (t *Tracker) read() (map[string]fileRecord, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]fileRecord), nil
	}
	if err != nil {
		return nil, apperr.WrapError(apperr.CodeConfiguration, "read tracker "+t.path, err)
	}

	store := make(map[string]fileRecord)
	if len(data) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(data, &store); err != nil {
		corrupted := apperr.WrapError(apperr.CodeTrackerCorrupted, t.path, err)
		return nil, apperr.WrapError(apperr.CodeConfiguration, "tracker store is not valid JSON", corrupted)
	}
	return store, nil
}

func (t *Tracker) decode(market string, fr fileRecord) (Record, error) {
	rec := Record{Market: market}
	switch {
	case len(fr.Symbols) > 0:
		rec.IDs = append([]string(nil), fr.Symbols...)
	case len(fr.Series) > 0:
		rec.IDs = append([]string(nil), fr.Series...)
	default:
		rec.IDs = t.initial(market).IDs
	}
	if fr.LastFetchDate != nil && *fr.LastFetchDate != "" {
		d, err := timing.ParseDate(*fr.LastFetchDate)
		if err != nil {
			corrupted := apperr.WrapError(apperr.CodeTrackerCorrupted,
				fmt.Sprintf("%s: market %s has invalid last_fetch_date %q", t.path, market, *fr.LastFetchDate), err)
			return Record{}, apperr.WrapError(apperr.CodeConfiguration, "tracker record is invalid", corrupted)
		}
		rec.LastFetchDate = &d
	}
	return rec, nil
}

func (t *Tracker) encode(market string, rec Record) fileRecord {
	fr := fileRecord{}
	if rec.LastFetchDate != nil {
		s := timing.FormatDate(*rec.LastFetchDate)
		fr.LastFetchDate = &s
	}
	ids := append([]string(nil), rec.IDs...)
	if t.defaults[market].IDKey == KeySeries {
		fr.Series = ids
	} else {
		fr.Symbols = ids
	}
	return fr
}
