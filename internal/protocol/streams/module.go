package streams

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/transport"
)

// Params 流服务依赖参数
type Params struct {
	fx.In

	Config  *config.Config   `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 返回流服务 Fx 模块
//
// 生命周期:
//   - OnStart: 启动服务并在传输的所有监听器上接受连接
//   - OnStop: 关闭连接并等待处理器退出
//
// 必须排在 transport 模块之后，监听器在 transport 的 OnStart 中创建。
func Module() fx.Option {
	return fx.Module("streams",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 根据配置创建流服务
func ProvideService(p Params) *Service {
	opts := []Option{WithMetrics(p.Metrics)}
	if p.Config != nil {
		if p.Config.Transport.MaxFrameSize > 0 {
			opts = append(opts, WithMaxFrameSize(p.Config.Transport.MaxFrameSize))
		}
		if d := time.Duration(p.Config.Handshake.Timeout); d > 0 {
			opts = append(opts, WithPathTimeout(d))
		}
	}
	return New(opts...)
}

func registerLifecycle(lc fx.Lifecycle, svc *Service, t *transport.Transport) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Start(ctx); err != nil {
				return err
			}
			var err error
			for _, l := range t.Listeners() {
				err = multierr.Append(err, svc.Serve(l))
			}
			return err
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop(ctx)
		},
	})
}
