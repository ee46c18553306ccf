// Package tls 提供传输层 TLS 1.3 配置
//
// broker 与设备都使用由长期 Ed25519 密钥直接签发的自签名证书。
// 证书公钥就是对端身份，验证时只信任公钥本身：
//
//   - 服务端请求客户端证书，但不强制；设备可以匿名连接
//   - 客户端可以指定期望的 broker 身份
//   - 联邦调用方的身份通过 PeerIdentity 从连接状态读取
//
// # 使用示例
//
//	b := tls.NewConfigBuilder(id).WithNextProtos([]string{protocolids.ALPN})
//	serverConf, err := b.BuildServerConfig()
//	clientConf, err := b.BuildClientConfig(expected)
package tls
