// collector 执行一次全部市场的增量采集。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fundbot/pkg/config"
	"fundbot/pkg/logger"
)

var (
	configPath  = flag.String("config", "", "配置文件路径（默认查找 config/collector.yaml）")
	startDate   = flag.String("start", "", "起始日期 YYYY-MM-DD，覆盖进度记录")
	endDate     = flag.String("end", "", "结束日期 YYYY-MM-DD，默认今天")
	period      = flag.String("interval", "", "采集周期，如 1d、1wk、1mo")
	interactive = flag.Bool("interactive", false, "交互式输入起止日期与周期")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}
	if *startDate != "" {
		cfg.Collection.Start = *startDate
	}
	if *endDate != "" {
		cfg.Collection.End = *endDate
	}
	if *period != "" {
		cfg.Collection.Interval = *period
	}
	if *interactive {
		if err := promptCollection(os.Stdin, os.Stdout, &cfg.Collection); err != nil {
			fmt.Fprintf(os.Stderr, "读取输入失败: %v\n", err)
			return 1
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效: %v\n", err)
		return 1
	}

	base, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer closeLog()
	log := logger.WithComponent(base, "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, nil, base)
	if err != nil {
		log.WithError(err).Error("初始化失败")
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("关闭资源失败")
		}
	}()

	result, err := app.Run(ctx)
	if err != nil {
		log.WithError(err).Error("采集结束，但汇总文件写入失败")
		return 1
	}
	if ctx.Err() != nil {
		log.Warn("收到停止信号，采集已中断")
		return 130
	}
	if result.Succeeded() == 0 {
		log.Error("没有任何市场采集成功")
		return 2
	}
	log.WithField("run_id", result.ID).Infof("采集完成: %d/%d 个市场成功", result.Succeeded(), len(result.Results))
	return 0
}
