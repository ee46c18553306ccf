// Package transport 提供 broker 的两种传输
//
//   - QUIC（quic-go，ALPN "carrier-broker"）：设备与联邦 broker 的默认传输
//   - TCP：TLS 1.3 之上用 hashicorp/yamux 多路复用，用于 UDP 受限的网络
//
// 两种传输都以 Conn 暴露：可接受和打开双向流，并在对端出示证书时给出其身份。
// TLS 证书由 broker 的 Ed25519 身份密钥自签名，见 security/tls。
//
// 地址格式为 "host:port"（QUIC）或 "tcp://host:port"、"quic://host:port"。
package transport
