package peer

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
)

// Params 联邦协议模块依赖参数
type Params struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Federator *federation.Federator
	Gate      *gate.Gate
}

// Module 返回联邦协议 Fx 模块
//
// 提供:
//   - *Client 以及作为 federation.Sender 的同一实例
//
// 生命周期:
//   - OnStop: 关闭到对端的连接
func Module() fx.Option {
	return fx.Module("protocol_peer",
		fx.Provide(
			ProvideClient,
			func(c *Client) federation.Sender { return c },
			ProvideService,
		),
		fx.Invoke(
			func(s *Service, svc *streams.Service) error { return s.Register(svc) },
			registerLifecycle,
		),
	)
}

// ClientParams 联邦客户端依赖参数
type ClientParams struct {
	fx.In

	Config    *config.Config `optional:"true"`
	Transport *transport.Transport
}

// ProvideClient 创建联邦客户端
func ProvideClient(p ClientParams) *Client {
	size := config.DefaultTransportConfig().MaxFrameSize
	if p.Config != nil {
		size = p.Config.Transport.MaxFrameSize
	}
	return NewClient(p.Transport, size)
}

// ProvideService 创建联邦协议服务端
func ProvideService(p Params) (*Service, error) {
	tc := config.DefaultTransportConfig()
	if p.Config != nil {
		tc = p.Config.Transport
	}
	return NewService(p.Federator, p.Gate, tc.Advertise())
}

func registerLifecycle(lc fx.Lifecycle, c *Client) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return c.Close()
		},
	})
}
