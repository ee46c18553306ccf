// Package protocolids 定义 carrier broker 所有流路径的唯一注册表。
//
// # 唯一真源原则
//
// 本包是流路径的**唯一权威来源**。broker、peer 服务与客户端库在打开或
// 分发流时必须引用本包中的常量，禁止在其他位置定义字面量。
//
// # 命名规范
//
//   - 客户端协议: /carrier.broker.v1/broker/{name}
//   - 联邦协议:   /carrier.broker.v1/peer/{name}
//
// 每条流的第一帧就是该路径字符串，之后才是协议消息。
package protocolids
