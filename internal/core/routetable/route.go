package routetable

import (
	"sync"
	"time"

	"github.com/dep2p/go-carrier/pkg/types"
)

// State 路由状态
type State int

const (
	// StatePending 握手进行中
	StatePending State = iota
	// StateEstablished 已建立，是该身份的权威路由
	StateEstablished
	// StateSuperseded 已被同一身份更新的路由取代
	StateSuperseded
	// StateClosed 已断开或取消
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateEstablished:
		return "established"
	case StateSuperseded:
		return "superseded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Meta 路由的附加信息，随生命周期事件交给监听器
type Meta struct {
	// Timestamp 连接请求时间戳（Unix 秒）
	Timestamp uint64

	// Binding 握手会话的通道绑定值
	Binding []byte

	// XAddr 发布型连接携带的可达性描述
	XAddr []byte

	// Shadow 发布型连接携带的 shadow
	Shadow []byte
}

// Route 一个身份的路由
//
// Identity 创建后不变；其余字段由所属分片锁保护。
type Route struct {
	Identity types.Identity

	meta    Meta
	handle  uint64
	paths   []types.Path
	state   State
	reason  error // 进入 Closed 的原因
	expires time.Time
	at      time.Time

	mu         *sync.Mutex
	superseded chan struct{}
}

// Handle 返回路由句柄，Pending 时为 0
func (r *Route) Handle() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle
}

// State 返回当前状态
func (r *Route) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Paths 返回路径副本
func (r *Route) Paths() []types.Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.ClonePaths(r.paths)
}

// SetMeta 设置附加信息，仅对 Pending 路由生效
func (r *Route) SetMeta(m Meta) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePending {
		return false
	}
	r.meta = m
	return true
}

// Superseded 返回路由被取代时关闭的通道
func (r *Route) Superseded() <-chan struct{} {
	return r.superseded
}

// snapshot 在持有分片锁时调用
func (r *Route) snapshot() Snapshot {
	return Snapshot{
		Handle:        r.handle,
		Identity:      r.Identity,
		Paths:         types.ClonePaths(r.paths),
		Meta:          r.meta,
		EstablishedAt: r.at,
	}
}

// Snapshot 路由的只读快照
type Snapshot struct {
	Handle        uint64
	Identity      types.Identity
	Paths         []types.Path
	Meta          Meta
	EstablishedAt time.Time
}

// Listener 路由生命周期监听器
//
// 回调在持有身份分片锁时执行，必须快速返回且不得回调 Table。
type Listener interface {
	// RouteEstablished 新路由已建立；superseded 为被取代的旧路由，可能为 nil
	RouteEstablished(route Snapshot, superseded *Snapshot)

	// RouteClosed 路由已关闭
	RouteClosed(route Snapshot)
}

// ListenerFuncs 以函数实现 Listener，未设置的回调被忽略
type ListenerFuncs struct {
	Established func(route Snapshot, superseded *Snapshot)
	Closed      func(route Snapshot)
}

var _ Listener = ListenerFuncs{}

// RouteEstablished 实现 Listener
func (f ListenerFuncs) RouteEstablished(route Snapshot, superseded *Snapshot) {
	if f.Established != nil {
		f.Established(route, superseded)
	}
}

// RouteClosed 实现 Listener
func (f ListenerFuncs) RouteClosed(route Snapshot) {
	if f.Closed != nil {
		f.Closed(route)
	}
}
