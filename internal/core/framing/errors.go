package framing

import "errors"

var (
	// ErrFrameTooLarge 帧长度超过上限
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrInvalidHeader 帧头无法解析
	ErrInvalidHeader = errors.New("invalid frame header")

	// ErrInvalidPath 流路径头无效
	ErrInvalidPath = errors.New("invalid stream path")
)
