package noise

import "errors"

var (
	// ErrInvalidHandshake 握手消息无效
	ErrInvalidHandshake = errors.New("noise: invalid handshake")

	// ErrInvalidKey 本地密钥无法转换为 Curve25519 密钥
	ErrInvalidKey = errors.New("noise: invalid key")

	// ErrUnexpectedMessage 握手状态不接受该消息
	ErrUnexpectedMessage = errors.New("noise: unexpected handshake message")
)
