// Package gate 实现握手门控
//
// 门控把一次连接尝试驱动成一条路由：
//
//	Begin    校验时间戳新鲜度 -> 在路由表开预留 -> 把第一条握手消息交给密码学协作者
//	Advance  继续握手；完成时校验认证身份与时间戳，Complete 路由，
//	         对携带 xaddr 的连接写入发布账本，并用会话密钥加密路由句柄
//	Cancel   释放预留
//
// 结果是和类型 Outcome：Continue、Done、Rejected。
// 长时间没有进展的会话由后台循环回收，报告 Rejected(Timeout)。
// 时间通过 benbjohnson/clock 读取，测试可以驱动。
package gate
