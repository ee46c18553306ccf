package peer

import "errors"

var (
	// ErrClientClosed 客户端已关闭
	ErrClientClosed = errors.New("peer client closed")

	// ErrEmptyResponse 对端未返回应答
	ErrEmptyResponse = errors.New("peer returned no response")
)
