// Package subscription 实现订阅索引
//
// 每个订阅由一组有序过滤器和一个来源（订阅者身份 + shadow）组成：
//
//   - ImmediateFilter 的订阅接收所有 Publish/Unpublish 事件
//   - IdentityFilter(X) 的订阅只接收身份 X 的事件
//   - 任一过滤器匹配即投递，每个事件对每个订阅至多投递一次
//
// 同一来源的新订阅取代旧订阅，旧订阅收到 SupersedeEvent 后结束。
//
// # 并发模型
//
// 身份过滤器按 murmur3 分片存放；Immediate 集合由 RWMutex 保护，
// 扇出时只读。每个订阅有独立的事件队列，写流的 goroutine 通过 Next 消费，
// 与状态机解耦。队列默认无界；设置 MaxQueue 后溢出的订阅被关闭
// （ErrOverflow），绝不静默丢弃事件。
package subscription
