// Package framing 实现 broker 流上的消息分帧
//
// # 帧格式
//
// 每个流以一个路径头开始：
//
//	uvarint(len(path)) || path
//
// 之后每条消息：
//
//	uvarint(len(header)) || ProtoHeader{len} || message
//
// ProtoHeader 使用 protobuf 编码，声明紧随其后的消息长度。
// 消息长度超过上限时返回 ErrFrameTooLarge，调用方应终止连接。
package framing
