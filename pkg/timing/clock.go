package timing

import (
	"time"
)

// DateLayout 数据集、追踪文件与汇总文件统一使用的日期格式
const DateLayout = "2006-01-02"

// TimeService 提供当前时间接口，用于mock测试
type TimeService interface {
	Now() time.Time
}

// SystemTimeService 使用系统实际时间
type SystemTimeService struct{}

func (s *SystemTimeService) Now() time.Time {
	return time.Now()
}

// FixedTimeService 返回固定时间，测试用
type FixedTimeService struct {
	At time.Time
}

func (s *FixedTimeService) Now() time.Time {
	return s.At
}

// Today 返回 ts 当前日期（UTC 零点）
func Today(ts TimeService) time.Time {
	return TruncateDay(ts.Now())
}

// TruncateDay 截断到 UTC 日期零点
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD 格式的日期
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatStamp 数据行时间戳格式：UTC 零点只写日期，日内数据写完整 RFC3339
func FormatStamp(t time.Time) string {
	t = t.UTC()
	if t.Equal(TruncateDay(t)) {
		return t.Format(DateLayout)
	}
	return t.Format(time.RFC3339)
}

// ParseStamp 解析 FormatStamp 的输出
func ParseStamp(s string) (time.Time, error) {
	if len(s) == len(DateLayout) {
		return ParseDate(s)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
