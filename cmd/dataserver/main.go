// dataserver 提供采集状态的只读 HTTP 接口。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundbot/pkg/api"
	"fundbot/pkg/collector"
	"fundbot/pkg/config"
	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"
	"fundbot/pkg/tracker"
)

var (
	configPath = flag.String("config", "", "配置文件路径（默认查找 config/collector.yaml）")
	addr       = flag.String("addr", "", "监听地址，覆盖配置中的 server.addr")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	// 服务只读，不写运行日志文件
	cfg.Logger.File = ""
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效: %v\n", err)
		os.Exit(1)
	}

	base, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log := logger.WithComponent(base, "dataserver")

	codec, err := dataset.NewCodec(cfg.Collection.Format)
	if err != nil {
		log.WithError(err).Error("数据格式无效")
		return
	}

	markets := orderedMarkets(cfg.MarketNames())
	server := api.NewServer(cfg.Server, api.Sources{
		SummaryPath:    cfg.SummaryPath(),
		DictionaryPath: cfg.DictionaryPath(),
	}, tracker.New(cfg.TrackerPath(), cfg.TrackerDefaults(), base), dataset.NewStore(cfg.Paths.DataDir, codec), markets, base)

	if err := server.Start(); err != nil {
		log.WithError(err).Error("启动失败")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("收到停止信号，正在优雅关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to gracefully shutdown server")
	}
}

// orderedMarkets 按采集顺序排列市场
func orderedMarkets(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, m := range collector.MarketOrder {
		for _, n := range names {
			if n == m && !seen[n] {
				out = append(out, n)
				seen[n] = true
			}
		}
	}
	for _, n := range names {
		if !seen[n] {
			out = append(out, n)
		}
	}
	return out
}
