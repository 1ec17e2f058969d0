// Package export 把采集结果发布到外部系统：Redis Streams 与 InfluxDB。
package export

import (
	"context"
	"fmt"

	"fundbot/pkg/collector"
	"fundbot/pkg/logger"
	"fundbot/pkg/message"
	"fundbot/pkg/timing"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Producer 消息中的生产者名称
const Producer = "fundbot"

// RedisConfig Redis Streams 发布配置
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db" validate:"gte=0"`
	StreamPrefix string `mapstructure:"stream_prefix"`
	MaxLen       int64  `mapstructure:"max_len" validate:"gte=0"` // 0 表示不裁剪
}

// StreamClient Redis Streams 写入接口，*redis.Client 满足此接口
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// NewRedisClient 创建 Redis 客户端并检查连接
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("无法连接到 Redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// MarketEvent 单个市场结果消息的内容
type MarketEvent struct {
	collector.Result
	Error string `json:"error,omitempty"`
}

// RunEvent 运行汇总消息的内容
type RunEvent struct {
	RunID     string            `json:"run_id"`
	Succeeded int               `json:"succeeded"`
	Markets   int               `json:"markets"`
	Summary   collector.Summary `json:"summary"`
}

// RedisSink 把每个市场的结果与运行汇总发布到 Redis Streams
type RedisSink struct {
	client StreamClient
	config RedisConfig
	clock  timing.TimeService
	log    *logrus.Entry
}

// NewRedisSink 创建 Redis 发布器
func NewRedisSink(client StreamClient, config RedisConfig, clock timing.TimeService, log logrus.FieldLogger) *RedisSink {
	if clock == nil {
		clock = &timing.SystemTimeService{}
	}
	return &RedisSink{
		client: client,
		config: config,
		clock:  clock,
		log:    logger.WithComponent(log, "redis_sink"),
	}
}

// Name 回调名称
func (s *RedisSink) Name() string { return "redis" }

// AfterMarket 发布单个市场的结果
func (s *RedisSink) AfterMarket(ctx context.Context, res collector.Result) error {
	meta := message.Metadata{
		RunID:     res.RunID,
		DataType:  message.DataTypeMarketResult,
		Market:    res.Market,
		BatchSize: 1,
	}
	return s.publish(ctx, meta, MarketEvent{Result: res, Error: res.ErrMessage()})
}

// AfterRun 发布运行汇总
func (s *RedisSink) AfterRun(ctx context.Context, run *collector.Run) error {
	meta := message.Metadata{
		RunID:     run.ID,
		DataType:  message.DataTypeRunSummary,
		BatchSize: len(run.Results),
	}
	return s.publish(ctx, meta, RunEvent{
		RunID:     run.ID,
		Succeeded: run.Succeeded(),
		Markets:   len(run.Results),
		Summary:   run.Summary,
	})
}

func (s *RedisSink) publish(ctx context.Context, meta message.Metadata, payload interface{}) error {
	msg, err := message.NewEnvelope(Producer, meta, payload, s.clock.Now())
	if err != nil {
		return fmt.Errorf("创建消息失败: %w", err)
	}
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	stream := message.StreamName(s.config.StreamPrefix, meta.DataType)
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": data},
	}
	if s.config.MaxLen > 0 {
		args.MaxLen = s.config.MaxLen
		args.Approx = true
	}

	result := s.client.XAdd(ctx, args)
	if err := result.Err(); err != nil {
		return fmt.Errorf("发布消息到 Redis Streams 失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"stream":    stream,
		"messageID": result.Val(),
		"market":    meta.Market,
	}).Debug("消息发布成功")
	return nil
}
