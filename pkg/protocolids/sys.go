package protocolids

import "strings"

// ============================================================================
// 路径前缀常量
// ============================================================================

// BrokerPrefix 客户端协议前缀
const BrokerPrefix = "/carrier.broker.v1/broker/"

// PeerPrefix 联邦协议前缀
const PeerPrefix = "/carrier.broker.v1/peer/"

// ============================================================================
// 客户端协议
// ============================================================================

// BrokerConnect 建立路由：握手往返后保持空闲，直到被取代或断开
const BrokerConnect = "/carrier.broker.v1/broker/connect"

// BrokerPublish 发布可达性，服务端推送 PublishChange
const BrokerPublish = "/carrier.broker.v1/broker/publish"

// BrokerSubscribe 订阅发布活动，服务端推送 SubscribeChange
const BrokerSubscribe = "/carrier.broker.v1/broker/subscribe"

// BrokerResolve 将身份解析为当前路由
const BrokerResolve = "/carrier.broker.v1/broker/resolve"

// ============================================================================
// 联邦协议
// ============================================================================

// PeerConnect broker 之间的单次路由通告
const PeerConnect = "/carrier.broker.v1/peer/connect"

// ALPN QUIC/TLS 应用层协议协商标识
const ALPN = "carrier-broker"

// IsBroker 判断是否为客户端协议路径
func IsBroker(path string) bool {
	return strings.HasPrefix(path, BrokerPrefix)
}

// IsPeer 判断是否为联邦协议路径
func IsPeer(path string) bool {
	return strings.HasPrefix(path, PeerPrefix)
}

// Known 判断路径是否已注册
func Known(path string) bool {
	switch path {
	case BrokerConnect, BrokerPublish, BrokerSubscribe, BrokerResolve, PeerConnect:
		return true
	}
	return false
}
