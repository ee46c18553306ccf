package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carrier"

// 握手结果标签
const (
	OutcomeDone              = "done"
	OutcomeStaleTimestamp    = "stale_timestamp"
	OutcomeIdentityBusy      = "identity_busy"
	OutcomeTimeout           = "timeout"
	OutcomeHandshakeRejected = "handshake_rejected"
)

// 账本事件标签
const (
	KindPublish   = "publish"
	KindUnpublish = "unpublish"
	KindSupersede = "supersede"
)

// Metrics broker 指标集合
type Metrics struct {
	registry *prometheus.Registry

	routesEstablished  prometheus.Gauge
	routesSuperseded   prometheus.Counter
	routesClosed       prometheus.Counter
	handshakes         *prometheus.CounterVec
	publishes          prometheus.Gauge
	ledgerEvents       *prometheus.CounterVec
	subscriptions      prometheus.Gauge
	overflows          prometheus.Counter
	federationSent     prometheus.Counter
	federationFailures *prometheus.CounterVec
	federationReceived prometheus.Counter
	streams            *prometheus.CounterVec
	connectRateLimited prometheus.Counter
}

// New 创建指标集合并注册到新的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		routesEstablished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "routes_established",
			Help: "Number of currently established routes.",
		}),
		routesSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "routes_superseded_total",
			Help: "Routes superseded by a newer handshake for the same identity.",
		}),
		routesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "routes_closed_total",
			Help: "Routes closed by disconnect.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handshakes_total",
			Help: "Handshake outcomes.",
		}, []string{"outcome"}),
		publishes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "publishes",
			Help: "Number of live publish records.",
		}),
		ledgerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_events_total",
			Help: "Publish ledger change events.",
		}, []string{"kind"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscriptions",
			Help: "Number of live subscriptions.",
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "subscription_overflows_total",
			Help: "Subscriptions closed because their queue exceeded the limit.",
		}),
		federationSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "federation_sent_total",
			Help: "Route announcements delivered to peer brokers.",
		}),
		federationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "federation_failures_total",
			Help: "Failed route announcement attempts per peer.",
		}, []string{"peer"}),
		federationReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "federation_received_total",
			Help: "Route announcements accepted from peer brokers.",
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "streams_total",
			Help: "Streams opened per protocol path.",
		}, []string{"path"}),
		connectRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "connect_rate_limited_total",
			Help: "Connect requests rejected by the per-connection rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.routesEstablished,
		m.routesSuperseded,
		m.routesClosed,
		m.handshakes,
		m.publishes,
		m.ledgerEvents,
		m.subscriptions,
		m.overflows,
		m.federationSent,
		m.federationFailures,
		m.federationReceived,
		m.streams,
		m.connectRateLimited,
	)
	return m
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 的 HTTP Handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ===== 路由 =====

// RouteEstablished 记录一条新路由，superseded 表示是否取代了旧路由
func (m *Metrics) RouteEstablished(superseded bool) {
	if m == nil {
		return
	}
	if superseded {
		m.routesSuperseded.Inc()
		return
	}
	m.routesEstablished.Inc()
}

// RouteClosed 记录一条路由关闭
func (m *Metrics) RouteClosed() {
	if m == nil {
		return
	}
	m.routesEstablished.Dec()
	m.routesClosed.Inc()
}

// Handshake 记录握手结果
func (m *Metrics) Handshake(outcome string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(outcome).Inc()
}

// ===== 账本与订阅 =====

// LedgerEvent 记录账本事件，delta 为发布记录数的变化
func (m *Metrics) LedgerEvent(kind string, delta int) {
	if m == nil {
		return
	}
	m.ledgerEvents.WithLabelValues(kind).Inc()
	m.publishes.Add(float64(delta))
}

// SubscriptionAdded 记录新订阅
func (m *Metrics) SubscriptionAdded() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionRemoved 记录订阅移除，overflow 表示因队列溢出被关闭
func (m *Metrics) SubscriptionRemoved(overflow bool) {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
	if overflow {
		m.overflows.Inc()
	}
}

// ===== 联邦 =====

// FederationSent 记录一次成功发送
func (m *Metrics) FederationSent() {
	if m == nil {
		return
	}
	m.federationSent.Inc()
}

// FederationFailure 记录一次发送失败
func (m *Metrics) FederationFailure(peer string) {
	if m == nil {
		return
	}
	m.federationFailures.WithLabelValues(peer).Inc()
}

// FederationReceived 记录一次接受的公告
func (m *Metrics) FederationReceived() {
	if m == nil {
		return
	}
	m.federationReceived.Inc()
}

// ===== 服务 =====

// StreamOpened 记录一个流
func (m *Metrics) StreamOpened(path string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(path).Inc()
}

// ConnectRateLimited 记录一次被限流的连接请求
func (m *Metrics) ConnectRateLimited() {
	if m == nil {
		return
	}
	m.connectRateLimited.Inc()
}
