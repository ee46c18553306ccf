package federation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Params 联邦模块依赖参数
type Params struct {
	fx.In

	Config  *config.Config `optional:"true"`
	Ledger  *ledger.Ledger
	Routes  *routetable.Table
	Sender  Sender           `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// Module 返回联邦 Fx 模块
//
// 生命周期:
//   - OnStart: 启动 worker 并注册为路由表监听器
//   - OnStop: 取消监听并停止 worker
func Module() fx.Option {
	return fx.Module("federation",
		fx.Provide(ProvideFederator),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideFederator 根据配置创建联邦传播器
func ProvideFederator(p Params) (*Federator, error) {
	cfg := config.DefaultFederationConfig()
	stripes := config.DefaultRoutesConfig().Stripes
	if p.Config != nil {
		cfg = p.Config.Federation
		stripes = p.Config.Routes.Stripes
	}

	peers := make([]Peer, 0, len(cfg.Peers))
	for i, pc := range cfg.Peers {
		id, err := types.ParseIdentity(pc.Identity)
		if err != nil {
			return nil, fmt.Errorf("federation: peers[%d]: %w", i, err)
		}
		peers = append(peers, Peer{Identity: id, Addr: pc.Addr})
	}

	return New(Config{
		Peers:          peers,
		InitialBackoff: time.Duration(cfg.InitialBackoff),
		MaxBackoff:     time.Duration(cfg.MaxBackoff),
		MaxElapsed:     time.Duration(cfg.MaxElapsed),
		RequestTimeout: time.Duration(cfg.RequestTimeout),
		DedupCacheSize: cfg.DedupCacheSize,
		Stripes:        stripes,
		Sender:         p.Sender,
		Ledger:         p.Ledger,
		Metrics:        p.Metrics,
		Routes:         p.Routes,
	})
}

func registerLifecycle(lc fx.Lifecycle, f *Federator, routes *routetable.Table) {
	var cancel func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			f.Start()
			cancel = routes.Subscribe(f)
			return nil
		},
		OnStop: func(_ context.Context) error {
			if cancel != nil {
				cancel()
			}
			return f.Stop()
		},
	})
}
