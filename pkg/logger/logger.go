package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Entry = logrus.Entry

// Config 日志配置
type Config struct {
	Level   string `mapstructure:"level" json:"level"`       // debug, info, warn, error
	Format  string `mapstructure:"format" json:"format"`     // text, json
	File    string `mapstructure:"file" json:"file"`         // 运行日志文件，为空时只输出到控制台
	NoColor bool   `mapstructure:"no_color" json:"no_color"` // 禁用控制台颜色
}

// New 创建日志器。
// 返回的关闭函数由调用方（通常是 main）负责在退出前调用。
func New(config Config) (*logrus.Logger, func() error, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	var out io.Writer = os.Stdout
	closeFn := func() error { return nil }

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	log.SetOutput(out)

	// 写入文件时关闭颜色，运行报告需要按 level=error 扫描日志行
	if config.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
			DisableColors:   config.NoColor || config.File != "",
		})
	}

	return log, closeFn, nil
}

// Discard 返回一个丢弃所有输出的日志器，测试中使用
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// WithComponent 创建带组件名的日志器
func WithComponent(log logrus.FieldLogger, component string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("component", component)
}
