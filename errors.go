package carrier

import "errors"

var (
	// ErrClosed 客户端或流已关闭
	ErrClosed = errors.New("carrier: closed")

	// ErrRejected broker 拒绝了请求
	ErrRejected = errors.New("carrier: rejected by broker")

	// ErrSuperseded 被同一身份或同一来源的新操作取代
	ErrSuperseded = errors.New("carrier: superseded")

	// ErrRouteMismatch 加密的路由句柄与应答中的句柄不一致
	ErrRouteMismatch = errors.New("carrier: sealed route does not match response")

	// ErrNoIdentity 未配置设备身份
	ErrNoIdentity = errors.New("carrier: no device identity")

	// ErrNotConnected 连接上还没有建立完成的路由
	ErrNotConnected = errors.New("carrier: not connected")
)

// ErrNotFound broker 没有该身份的路由
var ErrNotFound = errors.New("carrier: identity not found")
