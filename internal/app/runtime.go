package app

import (
	"context"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/transport"
)

// Runtime 表示一个已通过 fx 组装完成的 broker 运行时
type Runtime struct {
	Identity  *identity.Identity
	Routes    *routetable.Table
	Ledger    *ledger.Ledger
	Federator *federation.Federator
	Transport *transport.Transport

	// Metrics 未启用指标时为 nil
	Metrics *metrics.Metrics

	stop func(ctx context.Context) error
}

// Addrs 返回所有监听地址，QUIC 为 host:port，TCP 带 tcp:// 前缀
func (r *Runtime) Addrs() []string {
	var addrs []string
	for _, l := range r.Transport.Listeners() {
		a := l.Addr()
		if a.Network() == "tcp" {
			addrs = append(addrs, transport.TCP+"://"+a.String())
			continue
		}
		addrs = append(addrs, a.String())
	}
	return addrs
}

// Stop 停止运行时（触发 fx 生命周期 OnStop）
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	return r.stop(ctx)
}
