// Package app 提供 carrier broker 应用编排层
//
// app 包负责：
//   - fx 模块组装
//   - 依赖注入协调
//   - 生命周期管理
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/util/logger"
)

var log = logger.Logger("app")

const (
	defaultStartTimeout = 30 * time.Second
	defaultStopTimeout  = 30 * time.Second
)

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
//   - 校验配置
//   - 组装 fx 模块
//   - 管理应用生命周期
type Bootstrap struct {
	config *config.Config
	fxApp  *fx.App
	extra  []fx.Option

	startTimeout time.Duration
	stopTimeout  time.Duration
}

// NewBootstrap 创建引导程序，cfg 为 nil 时使用默认配置
func NewBootstrap(cfg *config.Config, opts ...BootstrapOption) *Bootstrap {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	b := &Bootstrap{
		config:       cfg,
		startTimeout: defaultStartTimeout,
		stopTimeout:  defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Options 返回组装好的 fx 选项，不包含日志器
func (b *Bootstrap) Options() fx.Option {
	return fx.Options(
		fx.Supply(b.config),
		AllModules(),
		fx.Options(b.extra...),
	)
}

// Start 构建并启动 broker
func (b *Bootstrap) Start(ctx context.Context) (*Runtime, error) {
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	rt := &Runtime{stop: b.Stop}
	b.fxApp = fx.New(
		b.Options(),
		fx.WithLogger(logger.FxEventLogger),
		fx.Populate(
			&rt.Identity,
			&rt.Routes,
			&rt.Ledger,
			&rt.Federator,
			&rt.Transport,
			&rt.Metrics,
		),
	)
	if err := b.fxApp.Err(); err != nil {
		return nil, fmt.Errorf("组装模块失败: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, b.startTimeout)
	defer cancel()
	if err := b.fxApp.Start(startCtx); err != nil {
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}

	log.Info("broker 已启动", "identity", rt.Identity.String(), "addrs", rt.Addrs())
	return rt, nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, b.stopTimeout)
	defer cancel()

	return b.fxApp.Stop(stopCtx)
}
