package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/util/logger"
)

var log = logger.Logger("metrics")

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 metrics 的 Fx 模块
//
// 提供:
//   - *Metrics: 未启用时为 nil
//
// 生命周期:
//   - OnStart: 启用时启动 /metrics HTTP 服务
//   - OnStop: 关闭 HTTP 服务
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideMetrics 根据配置创建指标集合
func ProvideMetrics(p Params) *Metrics {
	if p.Config == nil || !p.Config.Metrics.Enabled {
		return nil
	}
	return New()
}

func registerLifecycle(lc fx.Lifecycle, m *Metrics, p Params) {
	if m == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              p.Config.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("指标服务已启动", "addr", ln.Addr().String())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Warn("指标服务异常退出", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
