// Package ledger 实现发布账本
//
// 每个身份至多一条活跃的发布记录 { identity, xaddr, shadow }。
// 新发布取代旧发布：旧记录的所有者（它自己的发布流）收到 Supersede，
// 记录被替换，然后 Publish{identity, xaddr} 扇出给所有匹配的订阅。
//
// # 所有权
//
// 记录可以绑定到一条本地路由（连接时携带 xaddr 的发布、发布流），
// 也可以来自联邦对端（路由句柄为 0）。账本作为路由表的监听器：
//
//   - RouteClosed：撤销绑定到该路由的记录
//   - RouteEstablished 且取代了旧路由：旧路由上的记录视为被取代
//     （若新路由自己携带发布，则由随后的 Publish 直接取代，不产生多余的 Unpublish）
//
// # 顺序
//
// 同一身份的修改在其 murmur3 分片锁内串行执行，扇出也在锁内完成，
// 因此每个订阅看到的同一身份事件顺序与账本顺序一致。
package ledger
