// Package noise 实现基于 Noise 协议的握手协作者
//
// 使用 Noise_XX_25519_ChaChaPoly_SHA256 模式，握手消息由连接请求承载：
//
//	-> e                              (设备：第一条 ConnectRequest)
//	<- e, ee, s, es, payload          (broker：ConnectResponse)
//	-> s, se, payload                 (设备：第二条 ConnectRequest)
//
// payload 包含：
//   - identity_key: Ed25519 身份公钥
//   - identity_sig: Sign("carrier-noise-static-key:" + curve25519_static_pubkey)
//   - timestamp:    连接请求的时间戳，broker 校验它与请求一致
//
// 握手完成后 broker 用会话密钥加密路由句柄作为最终握手字节，
// 设备解密后即可确认句柄属于本次握手。
//
// # 使用示例
//
//	crypto, err := noise.New(id.PrivateKey())
//	responder, err := crypto.NewResponder()
//
//	init, err := noise.NewInitiator(devicePriv, timestamp)
//	msg1, err := init.First()
//	msg2, _, err := responder.Step(msg1)
//	msg3, err := init.Second(msg2)
//	_, done, err := responder.Step(msg3)
package noise
