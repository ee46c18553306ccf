// Package metrics 提供 broker 的 Prometheus 指标
//
// 所有指标注册在独立的 Registry 上，通过 /metrics 暴露。
// *Metrics 的方法对 nil 接收者安全：未启用指标时各组件持有 nil，
// 调用点无需判断。
//
// # 指标
//
//	carrier_routes_established            当前已建立路由数
//	carrier_routes_superseded_total       被取代的路由数
//	carrier_routes_closed_total           关闭的路由数
//	carrier_handshakes_total{outcome}     握手结果
//	carrier_publishes                     当前发布记录数
//	carrier_ledger_events_total{kind}     账本变更事件
//	carrier_subscriptions                 当前订阅数
//	carrier_subscription_overflows_total  因队列溢出关闭的订阅数
//	carrier_federation_sent_total         成功发送的联邦公告
//	carrier_federation_failures_total     联邦公告发送失败次数
//	carrier_federation_received_total     收到的联邦公告
//	carrier_streams_total{path}           按路径统计的流
//	carrier_connect_rate_limited_total    被限流的连接请求
//
// # Fx 模块
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    metrics.Module(),
//	)
package metrics
