package export

import (
	"context"
	"fmt"

	"fundbot/pkg/collector"
	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// InfluxConfig InfluxDB 镜像配置
type InfluxConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	URL         string `mapstructure:"url" validate:"required_if=Enabled true"`
	Token       string `mapstructure:"token"`
	Org         string `mapstructure:"org" validate:"required_if=Enabled true"`
	Bucket      string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Measurement string `mapstructure:"measurement"`
	BatchSize   int    `mapstructure:"batch_size" validate:"gte=0"`
}

// PointWriter 阻塞式写入接口，api.WriteAPIBlocking 满足此接口
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// NewInfluxClient 创建 InfluxDB 客户端并检查健康状态
func NewInfluxClient(ctx context.Context, cfg InfluxConfig) (influxdb2.Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}
	return client, nil
}

// InfluxSink 把每个市场本次采集到的行镜像为 InfluxDB 数据点
type InfluxSink struct {
	writer PointWriter
	config InfluxConfig
	log    *logrus.Entry
}

// NewInfluxSink 创建 InfluxDB 镜像
func NewInfluxSink(writer PointWriter, config InfluxConfig, log logrus.FieldLogger) *InfluxSink {
	if config.Measurement == "" {
		config.Measurement = "fundbot_series"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	return &InfluxSink{
		writer: writer,
		config: config,
		log:    logger.WithComponent(log, "influx_sink"),
	}
}

// Name 回调名称
func (s *InfluxSink) Name() string { return "influxdb" }

// AfterMarket 写入成功市场本次采集到的行，失败的市场不写入
func (s *InfluxSink) AfterMarket(ctx context.Context, res collector.Result) error {
	if !res.Success || len(res.Rows) == 0 {
		return nil
	}

	points := Points(s.config.Measurement, res.Market, res.Rows)
	for start := 0; start < len(points); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.writer.WritePoint(ctx, points[start:end]...); err != nil {
			return fmt.Errorf("写入 InfluxDB 失败 (%s): %w", res.Market, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"market": res.Market,
		"points": len(points),
	}).Debug("Processed series data points")
	return nil
}

// Points 把数据行转换为数据点，market 与 id 作为标签
func Points(measurement, market string, rows []dataset.Row) []*write.Point {
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		if len(r.Values) == 0 {
			continue
		}
		p := influxdb2.NewPointWithMeasurement(measurement).
			AddTag("market", market).
			AddTag("id", r.ID).
			SetTime(r.Date)
		for field, v := range r.Values {
			p.AddField(field, v)
		}
		points = append(points, p)
	}
	return points
}
