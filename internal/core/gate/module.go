package gate

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/security"
)

// Params 门控模块依赖参数
type Params struct {
	fx.In

	Config  *config.Config `optional:"true"`
	Crypto  security.Crypto
	Routes  *routetable.Table
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 返回门控 Fx 模块
//
// 生命周期:
//   - OnStart: 启动过期会话回收循环
//   - OnStop: 停止回收并取消进行中的会话
func Module() fx.Option {
	return fx.Module("gate",
		fx.Provide(ProvideGate),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideGate 根据配置创建门控
func ProvideGate(p Params) (*Gate, error) {
	hs := config.DefaultHandshakeConfig()
	tr := config.DefaultTransportConfig()
	if p.Config != nil {
		hs = p.Config.Handshake
		tr = p.Config.Transport
	}
	return New(Config{
		FreshnessWindow: time.Duration(hs.FreshnessWindow),
		Timeout:         time.Duration(hs.Timeout),
		ReapInterval:    time.Duration(hs.ReapInterval),
		Advertise:       tr.Advertise(),
		Crypto:          p.Crypto,
		Routes:          p.Routes,
		Ledger:          p.Ledger,
		Metrics:         p.Metrics,
	})
}

func registerLifecycle(lc fx.Lifecycle, g *Gate) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			g.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			g.Stop()
			return nil
		},
	})
}
