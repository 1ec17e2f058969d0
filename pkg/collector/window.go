package collector

import (
	"time"

	"fundbot/pkg/timing"
	"fundbot/pkg/tracker"
)

// DefaultLookbackDays 没有进度记录时默认回溯的天数
const DefaultLookbackDays = 3650

// Window 本次采集的日期区间（含两端）
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// String 返回 "YYYY-MM-DD ~ YYYY-MM-DD"
func (w Window) String() string {
	return timing.FormatDate(w.Start) + " ~ " + timing.FormatDate(w.End)
}

// Empty 起始日期晚于结束日期
func (w Window) Empty() bool {
	return w.Start.After(w.End)
}

// ResolveWindow 计算采集区间：
// 显式指定的起止日期优先；否则起始日期取进度记录中的 last_fetch_date，
// 没有记录时取 today 往前 lookbackDays 天；结束日期默认 today。
func ResolveWindow(rec tracker.Record, start, end *time.Time, lookbackDays int, today time.Time) Window {
	today = timing.TruncateDay(today)
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	w := Window{End: today}
	if end != nil {
		w.End = timing.TruncateDay(*end)
	}

	switch {
	case start != nil:
		w.Start = timing.TruncateDay(*start)
	case rec.LastFetchDate != nil:
		w.Start = timing.TruncateDay(*rec.LastFetchDate)
	default:
		w.Start = today.AddDate(0, 0, -lookbackDays)
	}
	return w
}

// DefaultWindow 不考虑进度记录时的整体区间，用于汇总文件
func DefaultWindow(start, end *time.Time, lookbackDays int, today time.Time) Window {
	return ResolveWindow(tracker.Record{}, start, end, lookbackDays, today)
}
