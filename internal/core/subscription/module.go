package subscription

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/metrics"
)

// Params 订阅索引模块依赖参数
type Params struct {
	fx.In

	Config  *config.Config   `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 返回订阅索引 Fx 模块
func Module() fx.Option {
	return fx.Module("subscription",
		fx.Provide(ProvideIndex),
	)
}

// ProvideIndex 根据配置创建订阅索引
func ProvideIndex(p Params) *Index {
	cfg := config.DefaultSubscriptionsConfig()
	if p.Config != nil {
		cfg = p.Config.Subscriptions
	}
	return New(Config{
		Stripes:  cfg.Stripes,
		MaxQueue: cfg.MaxQueue,
		Metrics:  p.Metrics,
	})
}
