package gate

import (
	"errors"

	"github.com/dep2p/go-carrier/internal/core/routetable"
)

var (
	// ErrStaleTimestamp 请求时间戳超出新鲜度窗口
	ErrStaleTimestamp = errors.New("stale timestamp")

	// ErrIdentityBusy 该身份已有进行中的握手
	ErrIdentityBusy = routetable.ErrIdentityBusy

	// ErrTimeout 握手超时或预留过期
	ErrTimeout = errors.New("handshake timeout")

	// ErrHandshakeRejected 握手失败或认证结果与请求不符
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrUnknownOutcome 未知的结果变体
	ErrUnknownOutcome = errors.New("unknown gate outcome")
)
