// Package streams 把传输层的流分发给按路径注册的处理器
//
// broker 的每条流以一个带长度前缀的路径头开始（例如
// "/carrier.broker.v1/broker/connect"），随后是 ProtoHeader 分帧的消息。
// Service 为每个连接运行一个接受循环，为每条流启动一个 goroutine：
// 读取路径头、查找处理器并调用它。
//
// 处理器返回分帧或解析错误时整个连接被关闭；其他错误只结束当前流。
// 连接关闭时其上下文被取消，所有挂在该连接上的处理器随之退出。
package streams
