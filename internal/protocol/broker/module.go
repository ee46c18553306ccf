package broker

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
)

// Params broker 协议模块依赖参数
type Params struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Gate      *gate.Gate
	Routes    *routetable.Table
	Ledger    *ledger.Ledger
	Federator *federation.Federator `optional:"true"`
	Metrics   *metrics.Metrics      `optional:"true"`
}

// Module 返回 broker 协议 Fx 模块
func Module() fx.Option {
	return fx.Module("protocol_broker",
		fx.Provide(ProvideService),
		fx.Invoke(func(s *Service, svc *streams.Service) error {
			return s.Register(svc)
		}),
	)
}

// ProvideService 根据配置创建 broker 协议服务
func ProvideService(p Params) (*Service, error) {
	limits := config.DefaultLimitsConfig()
	if p.Config != nil {
		limits = p.Config.Limits
	}
	return New(Deps{
		Gate:      p.Gate,
		Routes:    p.Routes,
		Ledger:    p.Ledger,
		Federator: p.Federator,
		Metrics:   p.Metrics,
	}, WithConnectRate(limits.ConnectRate, limits.ConnectBurst))
}
