package broker

import "errors"

var (
	// ErrNotConnected 连接尚未通过 connect 绑定身份
	ErrNotConnected = errors.New("connection is not bound to an identity")

	// ErrRouteGone 绑定的路由已被关闭或取代
	ErrRouteGone = errors.New("bound route is no longer current")

	// ErrInvalidRequest 请求字段无效
	ErrInvalidRequest = errors.New("invalid request")
)
