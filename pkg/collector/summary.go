package collector

import (
	"fmt"
	"math"
	"time"

	"fundbot/pkg/storage"
	"fundbot/pkg/timing"
)

// SummaryTimeLayout last_updated 字段的时间格式
const SummaryTimeLayout = "2006-01-02 15:04:05"

// Summary 一次运行的数据范围汇总，写入 data_range.json
type Summary struct {
	StartDate               string                `json:"start_date"`
	EndDate                 string                `json:"end_date"`
	LastUpdated             string                `json:"last_updated"`
	DataCollectionFrequency string                `json:"data_collection_frequency"`
	APICallInterval         string                `json:"api_call_interval"`
	IntervalFallbacks       map[string]string     `json:"interval_fallbacks,omitempty"`
	Markets                 map[string]MarketFile `json:"markets"`
}

// MarketFile 市场数据文件状态
type MarketFile struct {
	FileExists bool   `json:"file_exists"`
	FilePath   string `json:"file_path"`
}

// BuildSummary 根据运行区间与数据目录中的文件状态生成汇总
func BuildSummary(w Window, interval string, marketDelay time.Duration, markets []string, store DatasetStore, now time.Time) Summary {
	s := Summary{
		StartDate:               timing.FormatDate(w.Start),
		EndDate:                 timing.FormatDate(w.End),
		LastUpdated:             now.Format(SummaryTimeLayout),
		DataCollectionFrequency: interval,
		APICallInterval:         FormatCallInterval(marketDelay),
		Markets:                 make(map[string]MarketFile, len(markets)),
	}
	for _, m := range markets {
		s.Markets[m] = MarketFile{
			FileExists: store.Exists(m),
			FilePath:   store.Path(m),
		}
	}
	return s
}

// FormatCallInterval 把调用间隔格式化为 "5S" 这样的秒数
func FormatCallInterval(d time.Duration) string {
	return fmt.Sprintf("%dS", int64(math.Round(d.Seconds())))
}

// WriteSummary 原子地写入汇总文件
func WriteSummary(path string, s Summary) error {
	return storage.WriteJSONAtomic(path, s)
}
