package subscription

import "errors"

var (
	// ErrClosed 订阅已关闭
	ErrClosed = errors.New("subscription closed")

	// ErrSuperseded 订阅被同一来源的新订阅取代
	ErrSuperseded = errors.New("subscription superseded")

	// ErrOverflow 订阅队列溢出
	ErrOverflow = errors.New("subscription queue overflow")

	// ErrUnknownFilter 无法识别的过滤器
	ErrUnknownFilter = errors.New("unknown filter variant")
)
