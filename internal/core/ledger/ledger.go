package ledger

import (
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/subscription"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("ledger")

// DefaultStripes 默认分片数
const DefaultStripes = 64

// Config 账本配置
type Config struct {
	// Stripes 身份锁分片数，必须是 2 的幂
	Stripes int

	// Index 订阅索引，为 nil 时创建默认索引
	Index *subscription.Index

	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
}

type stripe struct {
	mu      sync.Mutex
	records map[types.Identity]*Publication
}

// Ledger 发布账本
type Ledger struct {
	stripes []*stripe
	mask    uint32
	index   *subscription.Index
	metrics *metrics.Metrics

	routes sync.Map // uint64 -> *Publication
}

var _ routetable.Listener = (*Ledger)(nil)

// New 创建账本
func New(cfg Config) *Ledger {
	n := cfg.Stripes
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultStripes
	}
	if cfg.Index == nil {
		cfg.Index = subscription.New(subscription.Config{Metrics: cfg.Metrics})
	}
	l := &Ledger{
		stripes: make([]*stripe, n),
		mask:    uint32(n - 1),
		index:   cfg.Index,
		metrics: cfg.Metrics,
	}
	for i := range l.stripes {
		l.stripes[i] = &stripe{records: make(map[types.Identity]*Publication)}
	}
	return l
}

func (l *Ledger) stripeFor(id types.Identity) *stripe {
	return l.stripes[murmur3.Sum32(id[:])&l.mask]
}

// Index 返回订阅索引
func (l *Ledger) Index() *subscription.Index {
	return l.index
}

// ============================================================================
//                              发布
// ============================================================================

// Publish 记录身份的可达性
//
// 已有记录时，旧记录的所有者先收到 Supersede，然后记录被替换，
// 最后 Publish 事件扇出给匹配的订阅。route 为 0 表示记录不绑定本地路由。
func (l *Ledger) Publish(id types.Identity, xaddr, shadow []byte, route uint64) *Publication {
	p := newPublication(id, xaddr, shadow, route)

	st := l.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	delta := 1
	if prev, ok := st.records[id]; ok {
		l.unbind(prev)
		prev.end(true)
		delta = 0
		l.metrics.LedgerEvent(metrics.KindSupersede, 0)
		log.Debug("发布被取代", "identity", id.ShortString(), "old", prev.ID.String(), "new", p.ID.String())
	}

	st.records[id] = p
	if route != 0 {
		l.routes.Store(route, p)
	}
	l.metrics.LedgerEvent(metrics.KindPublish, delta)

	n := l.index.Fanout(types.PublishEvent{Identity: id, XAddr: p.XAddr})
	log.Debug("已发布", "identity", id.ShortString(), "route", route, "subscribers", n)
	return p
}

// Unpublish 删除身份的记录并扇出 Unpublish，记录不存在时是空操作
func (l *Ledger) Unpublish(id types.Identity) bool {
	st := l.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	p, ok := st.records[id]
	if !ok {
		return false
	}
	l.removeLocked(st, p, false)
	return true
}

// Withdraw 仅当 p 仍是当前记录时撤销它
//
// 过期的撤销（记录已被取代或已撤销）是空操作，返回 false。
func (l *Ledger) Withdraw(p *Publication) bool {
	if p == nil {
		return false
	}
	st := l.stripeFor(p.Identity)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.records[p.Identity] != p {
		return false
	}
	l.removeLocked(st, p, false)
	return true
}

// removeLocked 在持有分片锁时删除记录并扇出 Unpublish
func (l *Ledger) removeLocked(st *stripe, p *Publication, superseded bool) {
	delete(st.records, p.Identity)
	l.unbind(p)
	p.end(superseded)
	l.metrics.LedgerEvent(metrics.KindUnpublish, -1)

	n := l.index.Fanout(types.UnpublishEvent{Identity: p.Identity})
	log.Debug("已撤销发布", "identity", p.Identity.ShortString(), "route", p.Route, "subscribers", n)
}

func (l *Ledger) unbind(p *Publication) {
	if p.Route != 0 {
		l.routes.CompareAndDelete(p.Route, p)
	}
}

// withdrawRoute 撤销绑定到路由的记录
func (l *Ledger) withdrawRoute(handle uint64, superseded bool) bool {
	v, ok := l.routes.Load(handle)
	if !ok {
		return false
	}
	p := v.(*Publication)

	st := l.stripeFor(p.Identity)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.records[p.Identity] != p {
		return false
	}
	l.removeLocked(st, p, superseded)
	return true
}

// ============================================================================
//                              查询与订阅
// ============================================================================

// Lookup 返回身份的当前记录
func (l *Ledger) Lookup(id types.Identity) (Record, bool) {
	st := l.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	p, ok := st.records[id]
	if !ok {
		return Record{}, false
	}
	return p.record(), true
}

// Len 返回记录数
func (l *Ledger) Len() int {
	n := 0
	for _, st := range l.stripes {
		st.mu.Lock()
		n += len(st.records)
		st.mu.Unlock()
	}
	return n
}

// Subscribe 注册订阅，并先投递当前匹配的记录
//
// 注册与快照在所有分片锁内完成：快照之后的修改一定在快照事件之后到达。
func (l *Ledger) Subscribe(origin subscription.Origin, filters []types.Filter) (*subscription.Subscription, error) {
	for _, st := range l.stripes {
		st.mu.Lock()
	}
	defer func() {
		for _, st := range l.stripes {
			st.mu.Unlock()
		}
	}()

	sub, err := l.index.Add(origin, filters)
	if err != nil {
		return nil, err
	}
	for _, st := range l.stripes {
		for id, p := range st.records {
			if sub.Matches(id) {
				l.index.Deliver(sub, types.PublishEvent{Identity: id, XAddr: p.XAddr})
			}
		}
	}
	return sub, nil
}

// ============================================================================
//                              路由监听
// ============================================================================

// RouteEstablished 实现 routetable.Listener
//
// 新路由自己携带发布时，旧记录由随后的 Publish 取代；否则旧路由上的记录在这里被取代。
func (l *Ledger) RouteEstablished(route routetable.Snapshot, superseded *routetable.Snapshot) {
	if superseded == nil || len(route.Meta.XAddr) > 0 {
		return
	}
	l.withdrawRoute(superseded.Handle, true)
}

// RouteClosed 实现 routetable.Listener
func (l *Ledger) RouteClosed(route routetable.Snapshot) {
	l.withdrawRoute(route.Handle, false)
}
