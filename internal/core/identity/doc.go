// Package identity 管理 broker 与设备的长期 Ed25519 密钥
//
// 公钥本身就是 types.Identity；同一把私钥同时用于：
//   - Noise 握手 payload 签名
//   - 自签名 TLS 证书（QUIC 与 TCP+TLS 传输）
//
// # 持久化
//
// 私钥以 PEM 形式保存（"ED25519 PRIVATE KEY"），写入使用临时文件 + rename，
// 文件权限 0600。
//
// # Fx 模块
//
//	app := fx.New(
//	    identity.Module(),
//	)
package identity
