// Package main 提供 carrier 设备端命令行工具
//
// 使用方法:
//
//	carrier keygen -out device.key
//	carrier id -key device.key
//	carrier publish -key device.key -broker host:7443 -broker-id <id> -xaddr 10.0.0.2:9000
//	carrier subscribe -key device.key -broker host:7443 -broker-id <id> [-identity <id>,...]
//	carrier resolve -key device.key -broker host:7443 -broker-id <id> <identity>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// command 一个子命令
type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, out io.Writer) error
}

var commands = []command{
	{"keygen", "生成设备密钥", runKeygen},
	{"id", "显示设备身份", runID},
	{"publish", "连接 broker 并发布可达性", runPublish},
	{"subscribe", "订阅发布状态变更", runSubscribe},
	{"resolve", "查询身份的路由", runResolve},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		printUsage(out)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], out)
		}
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "用法: carrier <command> [flags]")
	fmt.Fprintln(out)
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.usage)
	}
}
