// Package interval 负责把统一的周期标记（如 "1mo"、"15m"、"1d"）
// 转换为各上游数据源各自的周期词汇。
//
// 单位约定：结尾为 "mo"/"MO" 表示月，单独的 "M"/"m" 表示分钟，两者绝不混用。
// 无法解析或目标词汇不支持的周期一律回退到日线，并通过返回值告知调用方。
package interval

import (
	"fmt"
	"strconv"
	"strings"

	apperr "fundbot/pkg/error"
)

// Unit 周期单位
type Unit string

const (
	Second Unit = "S"
	Minute Unit = "M"
	Hour   Unit = "H"
	Day    Unit = "D"
	Week   Unit = "W"
	Month  Unit = "MO"
	Year   Unit = "Y"
)

// Vocabulary 上游周期词汇
type Vocabulary string

const (
	// PriceHistory 行情历史类接口（Yahoo chart）
	PriceHistory Vocabulary = "price-history"
	// ExchangeTrading 交易所K线接口（Binance klines）
	ExchangeTrading Vocabulary = "exchange-trading"
	// EconomicSeries 经济数据序列接口（FRED observations）
	EconomicSeries Vocabulary = "economic-series"
)

// DefaultToken 未指定周期时使用的采集周期
const DefaultToken = "1mo"

// Interval 解析后的统一周期
type Interval struct {
	Value int
	Unit  Unit
}

// String 返回统一格式的周期标记
func (i Interval) String() string {
	if i.Unit == Month {
		return fmt.Sprintf("%dmo", i.Value)
	}
	return fmt.Sprintf("%d%s", i.Value, strings.ToLower(string(i.Unit)))
}

// 每种词汇在无法映射时的日线默认值
var fallbacks = map[Vocabulary]string{
	PriceHistory:    "1d",
	ExchangeTrading: "1d",
	EconomicSeries:  "d",
}

// 各词汇支持的映射表，key 为单位，内层 key 为数值
var vocabularies = map[Vocabulary]map[Unit]map[int]string{
	PriceHistory: {
		Minute: {1: "1m", 2: "2m", 5: "5m", 15: "15m", 30: "30m", 60: "60m", 90: "90m"},
		Hour:   {1: "1h"},
		Day:    {1: "1d", 5: "5d"},
		Week:   {1: "1wk"},
		Month:  {1: "1mo", 3: "3mo"},
	},
	ExchangeTrading: {
		Minute: {1: "1m", 3: "3m", 5: "5m", 15: "15m", 30: "30m"},
		Hour:   {1: "1h", 2: "2h", 4: "4h", 6: "6h", 8: "8h", 12: "12h"},
		Day:    {1: "1d", 3: "3d"},
		Week:   {1: "1w"},
		Month:  {1: "1M"},
	},
	EconomicSeries: {
		Day:   {1: "d"},
		Week:  {1: "w", 2: "bw"},
		Month: {1: "m", 3: "q", 6: "sa"},
		Year:  {1: "a"},
	},
}

// Parse 解析统一周期标记，例如 "1mo"、"15m"、"4H"、"1wk"。
// 空字符串解析为 DefaultToken。
func Parse(token string) (Interval, error) {
	s := strings.TrimSpace(token)
	if s == "" {
		s = DefaultToken
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return Interval{}, invalid(token)
	}

	value, err := strconv.Atoi(s[:i])
	if err != nil || value <= 0 {
		return Interval{}, invalid(token)
	}

	unit, ok := parseUnit(s[i:])
	if !ok {
		return Interval{}, invalid(token)
	}
	return Interval{Value: value, Unit: unit}, nil
}

func parseUnit(u string) (Unit, bool) {
	// 大小写敏感的部分只有分钟/月份的区分，其余单位大小写无关
	switch strings.ToLower(u) {
	case "mo", "mon", "month":
		return Month, true
	case "m", "min":
		return Minute, true
	case "s":
		return Second, true
	case "h":
		return Hour, true
	case "d":
		return Day, true
	case "w", "wk":
		return Week, true
	case "y":
		return Year, true
	}
	return "", false
}

func invalid(token string) error {
	return apperr.NewError(apperr.CodeInvalidInterval, fmt.Sprintf("cannot parse interval %q", token)).
		WithContext("token", token)
}

// Normalize 把周期标记转换为目标词汇中的标记。
// 当标记无法解析或目标词汇不支持时返回该词汇的日线默认值，fellBack 为 true。
func Normalize(token string, vocab Vocabulary) (native string, fellBack bool) {
	iv, err := Parse(token)
	if err != nil {
		return Fallback(vocab), true
	}
	return iv.In(vocab)
}

// In 把已解析的周期转换为目标词汇
func (i Interval) In(vocab Vocabulary) (string, bool) {
	table, ok := vocabularies[vocab]
	if !ok {
		return Fallback(vocab), true
	}
	if native, ok := table[i.Unit][i.Value]; ok {
		return native, false
	}
	return Fallback(vocab), true
}

// Plan 一个周期标记在全部词汇中实际使用的取值。
// 校验与执行都经由 Normalize，同一个标记在两条路径上得到相同的结果。
type Plan struct {
	Token  string                // 去除空白后的标记，空标记为 DefaultToken
	Native map[Vocabulary]string // 各词汇实际使用的标记
	// FellBack 回退到日线默认值的词汇，按 Vocabularies 的顺序
	FellBack []Vocabulary
}

// Resolve 计算周期标记在全部词汇中的取值，无法解析或不受支持时不返回错误
func Resolve(token string) Plan {
	p := Plan{Token: strings.TrimSpace(token), Native: make(map[Vocabulary]string, len(vocabularies))}
	if p.Token == "" {
		p.Token = DefaultToken
	}
	for _, vocab := range Vocabularies() {
		native, fellBack := Normalize(p.Token, vocab)
		p.Native[vocab] = native
		if fellBack {
			p.FellBack = append(p.FellBack, vocab)
		}
	}
	return p
}

// Applied 实际采用的统一周期：所有词汇都回退时为日线 "1d"，否则为原标记
func (p Plan) Applied() string {
	if len(p.FellBack) == len(vocabularies) {
		return "1d"
	}
	return p.Token
}

// Fallbacks 回退的词汇及其实际使用的标记，没有回退时为 nil
func (p Plan) Fallbacks() map[string]string {
	if len(p.FellBack) == 0 {
		return nil
	}
	out := make(map[string]string, len(p.FellBack))
	for _, vocab := range p.FellBack {
		out[string(vocab)] = p.Native[vocab]
	}
	return out
}

// Fallback 返回目标词汇的日线默认值
func Fallback(vocab Vocabulary) string {
	if f, ok := fallbacks[vocab]; ok {
		return f
	}
	return "1d"
}

// Vocabularies 返回全部已知词汇
func Vocabularies() []Vocabulary {
	return []Vocabulary{PriceHistory, ExchangeTrading, EconomicSeries}
}
