// Package routetable 维护每个身份唯一的权威路由
//
// # 状态机
//
//	Open ──► Pending ──Complete──► Established ──新的 Complete──► Superseded
//	            │                      │
//	          Abort / 过期            Close
//	            ▼                      ▼
//	          Closed                 Closed
//
// 不变量：
//   - 每个身份最多一个 Established 路由
//   - 每个身份最多一个 Pending 预留（可与它将取代的 Established 路由共存）
//   - 取代旧路由与安装新路由在同一把身份锁内原子完成，
//     旧路由的 Superseded 通道恰好关闭一次
//   - 对已失效句柄的 Close 是空操作
//
// 身份通过 murmur3 哈希分到独立的锁分片，不同身份之间互不阻塞。
// 生命周期监听器在持有身份分片锁时被调用，同一身份的事件因此线性有序；
// 监听器不得回调 Table。
package routetable
