package security

import "errors"

var (
	// ErrHandshakeIncomplete 握手尚未完成就请求结果或加密
	ErrHandshakeIncomplete = errors.New("security: handshake incomplete")

	// ErrHandshakeComplete 握手已完成后又收到握手消息
	ErrHandshakeComplete = errors.New("security: handshake already complete")

	// ErrInvalidSignature 身份签名无效
	ErrInvalidSignature = errors.New("security: invalid identity signature")

	// ErrIdentityMismatch 认证得到的身份与期望不符
	ErrIdentityMismatch = errors.New("security: identity mismatch")
)
