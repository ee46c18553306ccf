// Package types 定义 carrier broker 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 carrier 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 职能
//
// pkg/types 的职能是定义 **Go 内部数据结构**：
//   - Identity: 以公钥为地址的身份
//   - Path: 候选网络路径及其可达性类别
//   - Filter: 订阅过滤器（Immediate / Identity）
//   - ChangeEvent: 推送给订阅者的变更事件（Publish / Unpublish / Supersede）
//
// # 与 pkg/lib/proto 的区别
//
// pkg/types 定义 Go 内部数据结构（内存结构），
// pkg/lib/proto/broker 定义网络协议消息（wire format）。
//
// # 和类型（sum type）
//
// Filter 与 ChangeEvent 都是封闭接口：只有本包内的类型能实现它们。
// 消费方使用 type switch 时必须覆盖全部变体，未知变体应作为错误处理，
// 不能静默忽略。
package types
