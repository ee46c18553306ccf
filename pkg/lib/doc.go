// Package lib 包含 wire 层的消息定义
//
//   - proto/broker: broker 与设备、broker 与 broker 之间的消息
//   - proto/noise: Noise 握手 payload
//
// 消息用 protowire 手写编解码，不依赖 protoc 生成代码。
package lib
