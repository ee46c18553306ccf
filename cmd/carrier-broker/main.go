// Package main 提供 carrier broker 服务器
//
// broker 接受设备的 connect/publish/subscribe/resolve 流，
// 并把路由变更传播给配置的联邦 broker。
//
// 使用方法:
//
//	carrier-broker -config broker.json
//	carrier-broker -key broker.key -quic 0.0.0.0:7443 -advertise broker.example.com:7443
//
// 生成默认配置文件:
//
//	carrier-broker -init broker.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dep2p/go-carrier/internal/app"
	"github.com/dep2p/go-carrier/internal/util/logger"
)

var log = logger.Logger("cmd/broker")

// 构建信息，由 -ldflags 注入
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile = flag.String("config", "", "配置文件路径（JSON）")
	initFile   = flag.String("init", "", "写出默认配置文件后退出")

	keyFile   = flag.String("key", "", "broker 密钥文件路径")
	quicAddr  = flag.String("quic", "", "QUIC 监听地址")
	tcpAddr   = flag.String("tcp", "", "TCP 监听地址（设置即启用）")
	advertise = flag.String("advertise", "", "对外公布的地址")
	dataDir   = flag.String("data-dir", "", "数据目录（持久化路由句柄）")
	metrics   = flag.String("metrics", "", "指标监听地址（设置即启用）")
	peers     = flag.String("peers", "", "联邦对端，identity@addr 逗号分隔")
	logLevel  = flag.String("log-level", "", "日志级别，如 gate=debug,info")
	logFormat = flag.String("log-format", "", "日志格式（text 或 json）")

	statsInterval = flag.Duration("stats", 30*time.Second, "统计输出间隔，0 表示不输出")
	showVersion   = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("carrier-broker %s (%s)\n", Version, GitCommit)
		return nil
	}
	if *initFile != "" {
		if err := writeDefaultConfig(*initFile); err != nil {
			return err
		}
		fmt.Printf("已写出默认配置: %s\n", *initFile)
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return err
	}
	overrides := flagOverrides{
		keyFile:   *keyFile,
		quic:      *quicAddr,
		tcp:       *tcpAddr,
		advertise: *advertise,
		dataDir:   *dataDir,
		metrics:   *metrics,
		peers:     *peers,
		logLevel:  *logLevel,
		logFormat: *logFormat,
	}
	if err := overrides.apply(cfg); err != nil {
		return err
	}
	if err := cfg.Log.Apply(); err != nil {
		return fmt.Errorf("日志配置无效: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("启动 broker", "version", Version, "commit", GitCommit)
	a, err := app.RunApp(ctx, app.NewBootstrap(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	printServerInfo(a.Runtime(), len(cfg.Federation.Peers))
	if *statsInterval > 0 {
		go reportStats(ctx, a.Runtime(), *statsInterval)
	}

	return a.Wait(ctx)
}

// printServerInfo 打印服务器信息
func printServerInfo(rt *app.Runtime, peerCount int) {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                 Carrier Broker                       ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Printf("身份: %s\n", rt.Identity.ID())
	fmt.Println("监听地址:")
	for _, addr := range rt.Addrs() {
		fmt.Printf("  • %s\n", addr)
	}
	fmt.Printf("联邦对端: %d\n", peerCount)
	fmt.Println("按 Ctrl+C 停止服务器")
}

// reportStats 定期报告统计信息
func reportStats(ctx context.Context, rt *app.Runtime, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := rt.Routes.Stats()
			log.Info("统计",
				"established", st.Established,
				"pending", st.Pending,
				"publications", rt.Ledger.Len(),
				"subscribers", rt.Ledger.Index().Len())
		}
	}
}
