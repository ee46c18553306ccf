package storage

import (
	"math"
	"sync/atomic"
)

// handleStep 相邻句柄的间隔，保持最低位为 0
const handleStep = 2

// HandleAllocator 路由句柄分配器
type HandleAllocator interface {
	// Next 返回一个新的句柄
	Next() (uint64, error)

	// Close 释放分配器资源
	Close() error
}

// MemoryAllocator 基于原子计数器的句柄分配器
type MemoryAllocator struct {
	last   atomic.Uint64
	closed atomic.Bool
}

var _ HandleAllocator = (*MemoryAllocator)(nil)

// NewMemoryAllocator 创建内存分配器
func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{}
}

// Next 返回一个新的句柄
func (a *MemoryAllocator) Next() (uint64, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	for {
		last := a.last.Load()
		if last > math.MaxUint64-handleStep {
			return 0, ErrHandlesExhausted
		}
		if a.last.CompareAndSwap(last, last+handleStep) {
			return last + handleStep, nil
		}
	}
}

// Close 关闭分配器
func (a *MemoryAllocator) Close() error {
	a.closed.Store(true)
	return nil
}
