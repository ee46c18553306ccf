// Package security 定义握手门控使用的密码学协作者接口
//
// Handshake Gate 只依赖本包的接口，不关心握手的具体密码学：
//
//	Crypto     为每个连接尝试创建一个 Responder
//	Responder  逐条消费设备的握手消息，产生回复，完成后给出认证结果
//	Result     认证得到的身份、payload 中的时间戳和通道绑定值
//
// 具体实现：
//   - noise: Noise_XX_25519_ChaChaPoly_SHA256，payload 绑定 Ed25519 身份
//   - tls:   传输层 TLS 1.3 自签名证书与对端身份校验
package security
