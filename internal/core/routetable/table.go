package routetable

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/storage"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("routetable")

const (
	// DefaultStripes 默认锁分片数
	DefaultStripes = 64

	// DefaultReservationTTL 默认预留有效期
	DefaultReservationTTL = 10 * time.Second
)

// Config 路由表配置
type Config struct {
	// Stripes 锁分片数，必须是 2 的幂
	Stripes int

	// ReservationTTL 待定预留的有效期
	ReservationTTL time.Duration

	// Clock 时钟，测试时可注入 mock
	Clock clock.Clock

	// Allocator 路由句柄分配器
	Allocator storage.HandleAllocator

	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
}

type stripe struct {
	mu          sync.Mutex
	pending     map[types.Identity]*Route
	established map[types.Identity]*Route
}

// Table 路由表
type Table struct {
	stripes []*stripe
	mask    uint32
	ttl     time.Duration
	clock   clock.Clock
	alloc   storage.HandleAllocator
	metrics *metrics.Metrics

	handles sync.Map // uint64 -> *Route，仅包含 Established 路由

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// New 创建路由表
func New(cfg Config) *Table {
	n := cfg.Stripes
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultStripes
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = DefaultReservationTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Allocator == nil {
		cfg.Allocator = storage.NewMemoryAllocator()
	}

	t := &Table{
		stripes:   make([]*stripe, n),
		mask:      uint32(n - 1),
		ttl:       cfg.ReservationTTL,
		clock:     cfg.Clock,
		alloc:     cfg.Allocator,
		metrics:   cfg.Metrics,
		listeners: make(map[uint64]Listener),
	}
	for i := range t.stripes {
		t.stripes[i] = &stripe{
			pending:     make(map[types.Identity]*Route),
			established: make(map[types.Identity]*Route),
		}
	}
	return t
}

func (t *Table) stripeFor(id types.Identity) *stripe {
	return t.stripes[murmur3.Sum32(id[:])&t.mask]
}

// ============================================================================
//                              监听器
// ============================================================================

// Subscribe 注册生命周期监听器，返回取消函数
func (t *Table) Subscribe(l Listener) (cancel func()) {
	t.listenersMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

func (t *Table) notifyEstablished(route Snapshot, superseded *Snapshot) {
	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()
	for _, l := range t.listeners {
		l.RouteEstablished(route, superseded)
	}
}

func (t *Table) notifyClosed(route Snapshot) {
	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()
	for _, l := range t.listeners {
		l.RouteClosed(route)
	}
}

// ============================================================================
//                              状态转换
// ============================================================================

// Open 为身份创建待定预留
//
// 若该身份已有未过期的预留，返回 ErrIdentityBusy；已过期的预留被替换。
func (t *Table) Open(id types.Identity, candidates []types.Path) (*Route, error) {
	s := t.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := t.clock.Now()
	if old, ok := s.pending[id]; ok {
		if now.Before(old.expires) {
			return nil, ErrIdentityBusy
		}
		old.state = StateClosed
		old.reason = ErrTimeout
		delete(s.pending, id)
		log.Debug("过期预留被替换", "identity", id.ShortString())
	}

	r := &Route{
		Identity:   id,
		paths:      types.ClonePaths(candidates),
		state:      StatePending,
		expires:    now.Add(t.ttl),
		mu:         &s.mu,
		superseded: make(chan struct{}),
	}
	s.pending[id] = r
	return r, nil
}

// Complete 把待定预留提升为该身份的权威路由
//
// 已有的 Established 路由先被标记为 Superseded 并关闭其通知通道，
// 再安装新路由；两步在同一把身份锁内完成。
func (t *Table) Complete(r *Route, finalPaths []types.Path) (uint64, error) {
	s := t.stripeFor(r.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.state {
	case StatePending:
	case StateClosed:
		return 0, r.reason
	default:
		return 0, ErrNotPending
	}

	now := t.clock.Now()
	if s.pending[r.Identity] != r {
		r.state, r.reason = StateClosed, ErrTimeout
		return 0, ErrTimeout
	}
	if !now.Before(r.expires) {
		delete(s.pending, r.Identity)
		r.state, r.reason = StateClosed, ErrTimeout
		return 0, ErrTimeout
	}

	handle, err := t.alloc.Next()
	if err != nil {
		delete(s.pending, r.Identity)
		r.state, r.reason = StateClosed, ErrRouteClosed
		return 0, fmt.Errorf("allocate route handle: %w", err)
	}
	delete(s.pending, r.Identity)

	var prev *Snapshot
	if old, ok := s.established[r.Identity]; ok {
		old.state = StateSuperseded
		close(old.superseded)
		t.handles.Delete(old.handle)
		snap := old.snapshot()
		prev = &snap
	}

	r.handle = handle
	r.paths = types.ClonePaths(finalPaths)
	r.state = StateEstablished
	r.at = now
	s.established[r.Identity] = r
	t.handles.Store(handle, r)

	t.metrics.RouteEstablished(prev != nil)
	if prev != nil {
		log.Debug("路由被取代", "identity", r.Identity.ShortString(), "old", prev.Handle, "new", handle)
	} else {
		log.Debug("路由已建立", "identity", r.Identity.ShortString(), "route", handle)
	}

	t.notifyEstablished(r.snapshot(), prev)
	return handle, nil
}

// Abort 取消待定预留
//
// 返回 false 表示路由已不处于待定状态。
func (t *Table) Abort(r *Route) bool {
	s := t.stripeFor(r.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.state != StatePending {
		return false
	}
	if s.pending[r.Identity] == r {
		delete(s.pending, r.Identity)
	}
	r.state, r.reason = StateClosed, ErrRouteClosed
	return true
}

// Close 关闭句柄对应的路由
//
// 仅当该路由仍是其身份的当前路由时生效；已被取代或已关闭的句柄是空操作，返回 false。
func (t *Table) Close(handle uint64) bool {
	v, ok := t.handles.Load(handle)
	if !ok {
		return false
	}
	r := v.(*Route)

	s := t.stripeFor(r.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.state != StateEstablished || s.established[r.Identity] != r {
		return false
	}
	delete(s.established, r.Identity)
	t.handles.Delete(handle)
	r.state = StateClosed

	t.metrics.RouteClosed()
	log.Debug("路由已关闭", "identity", r.Identity.ShortString(), "route", handle)

	t.notifyClosed(r.snapshot())
	return true
}

// ============================================================================
//                              查询
// ============================================================================

// Lookup 返回身份当前的 Established 路由快照
func (t *Table) Lookup(id types.Identity) (Snapshot, bool) {
	s := t.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.established[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// LookupHandle 返回句柄对应的 Established 路由快照
func (t *Table) LookupHandle(handle uint64) (Snapshot, bool) {
	v, ok := t.handles.Load(handle)
	if !ok {
		return Snapshot{}, false
	}
	r := v.(*Route)

	s := t.stripeFor(r.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.state != StateEstablished {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Stats 路由表统计
type Stats struct {
	Pending     int
	Established int
}

// Stats 返回当前统计
func (t *Table) Stats() Stats {
	var st Stats
	for _, s := range t.stripes {
		s.mu.Lock()
		st.Pending += len(s.pending)
		st.Established += len(s.established)
		s.mu.Unlock()
	}
	return st
}
