package ledger

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/subscription"
)

// Params 账本模块依赖参数
type Params struct {
	fx.In

	Config  *config.Config `optional:"true"`
	Index   *subscription.Index
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 返回账本 Fx 模块
//
// 生命周期:
//   - OnStart: 注册为路由表监听器
//   - OnStop: 取消监听
func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(ProvideLedger),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideLedger 根据配置创建账本
func ProvideLedger(p Params) *Ledger {
	cfg := config.DefaultRoutesConfig()
	if p.Config != nil {
		cfg = p.Config.Routes
	}
	return New(Config{
		Stripes: cfg.Stripes,
		Index:   p.Index,
		Metrics: p.Metrics,
	})
}

func registerLifecycle(lc fx.Lifecycle, l *Ledger, routes *routetable.Table) {
	var cancel func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			cancel = routes.Subscribe(l)
			return nil
		},
		OnStop: func(_ context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
