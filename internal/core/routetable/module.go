package routetable

import (
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/storage"
)

// Params 路由表模块依赖参数
type Params struct {
	fx.In

	Config    *config.Config   `optional:"true"`
	Allocator storage.HandleAllocator
	Metrics   *metrics.Metrics `optional:"true"`
}

// Module 返回路由表 Fx 模块
func Module() fx.Option {
	return fx.Module("routetable",
		fx.Provide(ProvideTable),
	)
}

// ProvideTable 根据配置创建路由表
func ProvideTable(p Params) *Table {
	cfg := config.DefaultRoutesConfig()
	if p.Config != nil {
		cfg = p.Config.Routes
	}
	return New(Config{
		Stripes:        cfg.Stripes,
		ReservationTTL: time.Duration(cfg.ReservationTTL),
		Allocator:      p.Allocator,
		Metrics:        p.Metrics,
	})
}
