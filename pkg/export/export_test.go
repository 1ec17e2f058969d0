package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundbot/pkg/collector"
	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"
	"fundbot/pkg/message"
	"fundbot/pkg/timing"

	"github.com/go-redis/redis/v8"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	added []*redis.XAddArgs
	err   error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a)
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	return redis.NewStringResult("1718445600000-0", nil)
}

type fakeWriter struct {
	batches [][]*write.Point
	err     error
}

func (f *fakeWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	f.batches = append(f.batches, point)
	return f.err
}

func sampleRows() []dataset.Row {
	return []dataset.Row{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ID: "BTCUSDT", Values: map[string]float64{"close": 42000, "volume": 10}},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ID: "BTCUSDT", Values: map[string]float64{"close": 43000}},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ID: "ETHUSDT", Values: map[string]float64{}},
	}
}

func TestRedisSink_AfterMarket(t *testing.T) {
	client := &fakeStream{}
	sink := NewRedisSink(client, RedisConfig{MaxLen: 1000}, &timing.FixedTimeService{At: time.Unix(1718445600, 0)}, logger.Discard())

	res := collector.Result{RunID: "run-1", Market: "crypto", Success: false, Err: errors.New("no rows")}
	require.NoError(t, sink.AfterMarket(context.Background(), res))
	require.Len(t, client.added, 1)

	args := client.added[0]
	assert.Equal(t, "stream:fundbot:market", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	msg, err := message.FromJSON(values["data"].(string))
	require.NoError(t, err)
	require.NoError(t, msg.Validate())
	assert.Equal(t, "run-1", msg.Metadata.RunID)
	assert.Equal(t, "crypto", msg.Metadata.Market)
	assert.Equal(t, int64(1718445600), msg.Header.Timestamp)

	var event map[string]interface{}
	require.NoError(t, msg.Decode(&event))
	assert.Equal(t, "crypto", event["market"])
	assert.Equal(t, "no rows", event["error"])
}

func TestRedisSink_AfterRun(t *testing.T) {
	client := &fakeStream{}
	sink := NewRedisSink(client, RedisConfig{StreamPrefix: "stream:test"}, nil, logger.Discard())

	run := &collector.Run{
		ID:      "run-2",
		Results: []collector.Result{{Market: "stocks", Success: true}, {Market: "bonds"}},
		Summary: collector.Summary{StartDate: "2024-01-01", EndDate: "2024-06-15"},
	}
	require.NoError(t, sink.AfterRun(context.Background(), run))
	require.Len(t, client.added, 1)
	assert.Equal(t, "stream:test:run", client.added[0].Stream)
	assert.Zero(t, client.added[0].MaxLen)

	msg, err := message.FromJSON(client.added[0].Values.(map[string]interface{})["data"].(string))
	require.NoError(t, err)
	var event RunEvent
	require.NoError(t, msg.Decode(&event))
	assert.Equal(t, 1, event.Succeeded)
	assert.Equal(t, 2, event.Markets)
	assert.Equal(t, "2024-06-15", event.Summary.EndDate)
	assert.Equal(t, 2, msg.Metadata.BatchSize)
}

func TestRedisSink_PublishError(t *testing.T) {
	sink := NewRedisSink(&fakeStream{err: errors.New("connection refused")}, RedisConfig{}, nil, logger.Discard())
	err := sink.AfterMarket(context.Background(), collector.Result{Market: "stocks"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInfluxSink_AfterMarket(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewInfluxSink(writer, InfluxConfig{BatchSize: 1}, logger.Discard())

	res := collector.Result{Market: "crypto", Success: true, Rows: sampleRows()}
	require.NoError(t, sink.AfterMarket(context.Background(), res))
	require.Len(t, writer.batches, 2, "空行被跳过，每批一个点")

	p := writer.batches[0][0]
	assert.Equal(t, "fundbot_series", p.Name())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"market": "crypto", "id": "BTCUSDT"}, tags)
	assert.Len(t, p.FieldList(), 2)
}

func TestInfluxSink_SkipsFailedMarkets(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewInfluxSink(writer, InfluxConfig{}, logger.Discard())

	require.NoError(t, sink.AfterMarket(context.Background(), collector.Result{Market: "crypto", Rows: sampleRows()}))
	assert.Empty(t, writer.batches)
}

func TestInfluxSink_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("unauthorized")}
	sink := NewInfluxSink(writer, InfluxConfig{}, logger.Discard())

	err := sink.AfterMarket(context.Background(), collector.Result{Market: "crypto", Success: true, Rows: sampleRows()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crypto")
}
