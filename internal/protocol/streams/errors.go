package streams

import "errors"

// 定义错误
var (
	// ErrAlreadyStarted 服务已启动
	ErrAlreadyStarted = errors.New("service already started")

	// ErrNotStarted 服务未启动
	ErrNotStarted = errors.New("service not started")

	// ErrEmptyProtocol 协议为空
	ErrEmptyProtocol = errors.New("protocol is empty")

	// ErrInvalidProtocol 无效协议
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrHandlerNotFound 处理器未找到
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrHandlerExists 处理器已存在
	ErrHandlerExists = errors.New("handler already exists")
)
