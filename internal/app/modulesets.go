// Package app 提供模块集合清单
//
// modulesets.go 集中维护"哪些模块属于哪一层"，是 Bootstrap 组装的唯一模块来源。
package app

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/security/noise"
	"github.com/dep2p/go-carrier/internal/core/storage"
	"github.com/dep2p/go-carrier/internal/core/subscription"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/internal/protocol/broker"
	"github.com/dep2p/go-carrier/internal/protocol/peer"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
)

// FoundationModules 基础层模块组合 (Tier 1)
//
// 身份、句柄存储与指标，是其他所有模块的基础。
func FoundationModules() fx.Option {
	return fx.Options(
		identity.Module(),
		storage.Module(),
		metrics.Module(),
	)
}

// StateModules 状态机模块组合 (Tier 2)
//
// 路由表、订阅索引、发布账本、握手门控与联邦传播。
func StateModules() fx.Option {
	return fx.Options(
		routetable.Module(),
		subscription.Module(),
		ledger.Module(),
		noise.Module(),
		gate.Module(),
		federation.Module(),
	)
}

// TransportModules 传输层模块组合 (Tier 3)
//
// streams 的 OnStart 依赖 transport 已创建的监听器，顺序不能调换。
func TransportModules() fx.Option {
	return fx.Options(
		transport.Module(),
		streams.Module(),
	)
}

// ProtocolModules 协议层模块组合 (Tier 4)
func ProtocolModules() fx.Option {
	return fx.Options(
		broker.Module(),
		peer.Module(),
	)
}

// AllModules 完整的 broker 模块组合
func AllModules() fx.Option {
	return fx.Options(
		FoundationModules(),
		StateModules(),
		TransportModules(),
		ProtocolModules(),
	)
}
