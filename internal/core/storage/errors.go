package storage

import "errors"

var (
	// ErrClosed 分配器已关闭
	ErrClosed = errors.New("handle allocator closed")

	// ErrHandlesExhausted 句柄空间耗尽
	ErrHandlesExhausted = errors.New("route handles exhausted")

	// ErrCorrupted 持久化的高水位数据损坏
	ErrCorrupted = errors.New("handle high-water mark corrupted")
)
