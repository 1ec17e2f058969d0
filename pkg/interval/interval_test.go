package interval

import (
	"errors"
	"testing"

	apperr "fundbot/pkg/error"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    Interval
		wantErr bool
	}{
		{"月线", "1mo", Interval{1, Month}, false},
		{"月线大写", "3MO", Interval{3, Month}, false},
		{"分钟小写", "15m", Interval{15, Minute}, false},
		{"分钟大写", "1M", Interval{1, Minute}, false},
		{"小时", "4H", Interval{4, Hour}, false},
		{"周线wk", "1wk", Interval{1, Week}, false},
		{"年线", "1y", Interval{1, Year}, false},
		{"秒", "30s", Interval{30, Second}, false},
		{"空字符串取默认", "", Interval{1, Month}, false},
		{"缺少数值", "mo", Interval{}, true},
		{"缺少单位", "15", Interval{}, true},
		{"未知单位", "1q", Interval{}, true},
		{"零值", "0d", Interval{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrInvalidInterval))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		vocab        Vocabulary
		want         string
		wantFallback bool
	}{
		{"月线-行情", "1mo", PriceHistory, "1mo", false},
		{"月线-交易所", "1mo", ExchangeTrading, "1M", false},
		{"月线-经济", "1mo", EconomicSeries, "m", false},
		{"季度-经济", "3mo", EconomicSeries, "q", false},
		{"半年-经济", "6mo", EconomicSeries, "sa", false},
		{"双周-经济", "2w", EconomicSeries, "bw", false},
		{"年-经济", "1y", EconomicSeries, "a", false},
		{"周线-行情", "1w", PriceHistory, "1wk", false},
		{"周线-交易所", "1wk", ExchangeTrading, "1w", false},
		{"分钟不是月", "1M", ExchangeTrading, "1m", false},
		{"90分钟-行情", "90m", PriceHistory, "90m", false},
		{"4小时-交易所", "4h", ExchangeTrading, "4h", false},
		{"4小时-行情不支持", "4h", PriceHistory, "1d", true},
		{"分钟-经济不支持", "5m", EconomicSeries, "d", true},
		{"秒-全部不支持", "30s", ExchangeTrading, "1d", true},
		{"3月-交易所不支持", "3mo", ExchangeTrading, "1d", true},
		{"乱码回退", "abc", PriceHistory, "1d", true},
		{"乱码回退-经济", "abc", EconomicSeries, "d", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fellBack := Normalize(tt.token, tt.vocab)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFallback, fellBack)
		})
	}
}

func TestResolve_MatchesNormalize(t *testing.T) {
	tokens := []string{"1mo", "3mo", "1M", "1m", "4h", "1d", "5d", "1w", "2w", "1y", "30s", "bogus", "1x", ""}
	for _, token := range tokens {
		plan := Resolve(token)
		for _, vocab := range Vocabularies() {
			native, fellBack := Normalize(token, vocab)
			assert.Equal(t, native, plan.Native[vocab], "token=%q vocab=%s", token, vocab)
			assert.Equal(t, fellBack, contains(plan.FellBack, vocab), "token=%q vocab=%s", token, vocab)
		}
	}
}

func TestResolve_Applied(t *testing.T) {
	tests := []struct {
		token     string
		applied   string
		fallbacks map[string]string
	}{
		{"", "1mo", nil},
		{"1mo", "1mo", nil},
		{" 1d ", "1d", nil},
		{"abc", "1d", map[string]string{"price-history": "1d", "exchange-trading": "1d", "economic-series": "d"}},
		{"7d", "1d", map[string]string{"price-history": "1d", "exchange-trading": "1d", "economic-series": "d"}},
		{"3mo", "3mo", map[string]string{"exchange-trading": "1d"}},
		{"1y", "1y", map[string]string{"price-history": "1d", "exchange-trading": "1d"}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			plan := Resolve(tt.token)
			assert.Equal(t, tt.applied, plan.Applied())
			assert.Equal(t, tt.fallbacks, plan.Fallbacks())
		})
	}
}

func contains(vocabs []Vocabulary, v Vocabulary) bool {
	for _, x := range vocabs {
		if x == v {
			return true
		}
	}
	return false
}

func TestInterval_String(t *testing.T) {
	assert.Equal(t, "1mo", Interval{1, Month}.String())
	assert.Equal(t, "15m", Interval{15, Minute}.String())
	assert.Equal(t, "1d", Interval{1, Day}.String())
}
