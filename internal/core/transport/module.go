package transport

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/identity"
)

// Params 传输模块依赖参数
type Params struct {
	fx.In

	Config   *config.Config `optional:"true"`
	Identity *identity.Identity
}

// Module 返回传输 Fx 模块
//
// 生命周期:
//   - OnStart: 按配置启动 QUIC / TCP 监听
//   - OnStop: 关闭所有监听器
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideTransport),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransport 根据配置创建传输
func ProvideTransport(p Params) (*Transport, error) {
	cfg := config.DefaultTransportConfig()
	limits := config.DefaultLimitsConfig()
	if p.Config != nil {
		cfg = p.Config.Transport
		limits = p.Config.Limits
	}
	return New(p.Identity, Options{
		MaxIdleTimeout:   time.Duration(cfg.MaxIdleTimeout),
		KeepAlivePeriod:  time.Duration(cfg.KeepAlivePeriod),
		HandshakeTimeout: time.Duration(cfg.DialTimeout),
		MaxStreams:       limits.MaxStreamsPerConn,
	})
}

type lifecycleParams struct {
	fx.In

	LC        fx.Lifecycle
	Transport *Transport
	Config    *config.Config `optional:"true"`
}

func registerLifecycle(p lifecycleParams) {
	t := p.Transport
	tc := config.DefaultTransportConfig()
	if p.Config != nil {
		tc = p.Config.Transport
	}
	p.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var err error
			if tc.EnableQUIC {
				_, lerr := t.Listen(QUIC, tc.QUICListen)
				err = multierr.Append(err, lerr)
			}
			if tc.EnableTCP {
				_, lerr := t.Listen(TCP, tc.TCPListen)
				err = multierr.Append(err, lerr)
			}
			if err != nil {
				return multierr.Append(err, t.Close())
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
