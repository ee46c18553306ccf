// Package federation 在 broker 实例之间传播路由变更
//
// # 发送
//
// Federator 作为路由表监听器：路由建立时生成公告，路由关闭时生成撤回。
// 每个对端 broker 有独立的 worker，按顺序投递公告：
//
//   - 同一身份尚未发出的公告合并，只保留最新的一条
//   - 失败按 cenkalti/backoff 指数退避重试，与发起请求的生命周期无关
//   - 失败只记录日志和指标，不影响本地路由表、账本和订阅
//   - 发送前以路由表为准：路由已不存在的公告改为撤回
//
// # 接收
//
// Receive 处理对端发来的公告。同一 (来源, 身份) 的重复公告用 LRU 去重；
// 其余公告记录到远端路由表，携带 xaddr 时发布到本地账本（句柄为 0），
// 撤回时撤销对应的发布。远端路由供 resolve 查询。
//
// 接收到的公告不进入本地路由表，因此不会被再次转发。
package federation
