// Package storage 提供路由句柄分配
//
// 路由句柄是 broker 下发给设备的路由键，满足：
//   - 单调递增，从不为 0
//   - 始终为偶数（最低位由数据面包格式保留为方向位）
//   - 进程生命周期内从不复用
//
// 两种实现：
//
//	┌──────────────────┬───────────────────────────────────────────┐
//	│ MemoryAllocator  │ 原子计数器，重启后从头开始                  │
//	│ BadgerAllocator  │ 按块向 BadgerDB 预留高水位，重启后不复用    │
//	└──────────────────┴───────────────────────────────────────────┘
//
// 使用 Fx 依赖注入：
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    storage.Module(),
//	)
//
// 所有公开的类型和方法都是线程安全的。
package storage
