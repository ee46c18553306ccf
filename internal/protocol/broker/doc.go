// Package broker 实现面向设备的 broker 流协议
//
// 每条流以路径头选择处理器：
//
//   - connect: ConnectRequest/ConnectResponse 往返推进握手；完成后连接绑定到身份，
//     流保持空闲直到路由被取代（发送 supersede=true）或流关闭（关闭路由）
//   - publish: 在已绑定的连接上发布可达性，记录被取代时推送 PublishChange，
//     流关闭时撤销发布
//   - subscribe: 在已绑定的连接上订阅发布活动，推送 SubscribeChange
//   - resolve: 查询身份的当前路由，本地路由表优先，其次是联邦学到的路由
//
// 协议层面的失败用 ok=false 报告；只有分帧或解析错误才会关闭连接。
package broker
