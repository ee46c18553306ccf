// Package peer 实现 broker 之间的联邦协议
//
// 服务端处理 /carrier.broker.v1/peer/connect：一次 PeerConnectRequest，一次
// PeerConnectResponse。调用方身份取自传输层证书，必须是配置的对端 broker。
//
// Client 实现 federation.Sender，按对端缓存连接，向对端发送路由公告。
package peer
