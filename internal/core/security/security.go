package security

import "github.com/dep2p/go-carrier/pkg/types"

// Result 握手认证结果
type Result struct {
	// Identity 对端在握手 payload 中证明持有的长期身份
	Identity types.Identity

	// Timestamp 对端签入 payload 的时间戳（Unix 秒）
	Timestamp uint64

	// Binding 通道绑定值，在同一会话的双方相同
	Binding []byte
}

// Crypto 握手协作者工厂
type Crypto interface {
	// NewResponder 为一次连接尝试创建响应方状态
	NewResponder() (Responder, error)
}

// Responder 握手响应方
//
// 不是并发安全的；一个 Responder 只属于一个握手会话。
type Responder interface {
	// Step 处理一条对端握手消息
	//
	// 返回需要发回对端的消息（可能为空），done 表示握手完成。
	Step(msg []byte) (reply []byte, done bool, err error)

	// Result 返回认证结果，握手完成前返回 ErrHandshakeIncomplete
	Result() (Result, error)

	// Seal 用会话密钥加密一段数据，握手完成后可用
	Seal(plaintext []byte) ([]byte, error)
}
