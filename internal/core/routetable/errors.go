package routetable

import "errors"

var (
	// ErrIdentityBusy 该身份已有未过期的待定预留
	ErrIdentityBusy = errors.New("identity busy: handshake already pending")

	// ErrTimeout 预留已过期或已被替换
	ErrTimeout = errors.New("route reservation expired")

	// ErrRouteClosed 预留已被取消
	ErrRouteClosed = errors.New("route closed")

	// ErrNotPending 路由不处于待定状态
	ErrNotPending = errors.New("route is not pending")
)
