package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// App 运行中的 broker 应用
type App struct {
	runtime  *Runtime
	stopOnce sync.Once
	stopped  chan struct{}
	err      error
}

// RunApp 启动 broker 并返回可等待的应用
//
// 示例:
//
//	a, err := app.RunApp(ctx, app.NewBootstrap(cfg))
//	if err != nil {
//	    return err
//	}
//	return a.Wait(ctx)
func RunApp(ctx context.Context, b *Bootstrap) (*App, error) {
	rt, err := b.Start(ctx)
	if err != nil {
		return nil, err
	}
	return &App{runtime: rt, stopped: make(chan struct{})}, nil
}

// Runtime 返回运行时
func (a *App) Runtime() *Runtime {
	return a.runtime
}

// Wait 阻塞直到收到退出信号、ctx 取消或 Stop 被调用，然后停止应用
func (a *App) Wait(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		log.Info("收到信号，正在退出", "signal", sig.String())
	case <-ctx.Done():
	case <-a.stopped:
	}
	return a.Stop()
}

// Stop 停止应用，重复调用返回第一次的结果
func (a *App) Stop() error {
	a.stopOnce.Do(func() {
		close(a.stopped)
		ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
		defer cancel()
		if err := a.runtime.Stop(ctx); err != nil {
			a.err = fmt.Errorf("停止应用失败: %w", err)
		}
	})
	return a.err
}
