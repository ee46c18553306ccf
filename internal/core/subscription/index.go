package subscription

import (
	"errors"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("subscription")

// DefaultStripes 默认分片数
const DefaultStripes = 64

// Config 订阅索引配置
type Config struct {
	// Stripes 身份过滤器分片数，必须是 2 的幂
	Stripes int

	// MaxQueue 单个订阅的队列上限，0 表示无界
	MaxQueue int

	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
}

type stripe struct {
	mu   sync.RWMutex
	subs map[types.Identity]map[*Subscription]struct{}
}

// Index 订阅索引
type Index struct {
	stripes  []*stripe
	mask     uint32
	maxQueue int
	metrics  *metrics.Metrics

	immMu     sync.RWMutex
	immediate map[*Subscription]struct{}

	originsMu sync.Mutex
	origins   map[Origin]*Subscription
}

// New 创建订阅索引
func New(cfg Config) *Index {
	n := cfg.Stripes
	if n <= 0 || n&(n-1) != 0 {
		n = DefaultStripes
	}
	x := &Index{
		stripes:   make([]*stripe, n),
		mask:      uint32(n - 1),
		maxQueue:  cfg.MaxQueue,
		metrics:   cfg.Metrics,
		immediate: make(map[*Subscription]struct{}),
		origins:   make(map[Origin]*Subscription),
	}
	for i := range x.stripes {
		x.stripes[i] = &stripe{subs: make(map[types.Identity]map[*Subscription]struct{})}
	}
	return x
}

func (x *Index) stripeFor(id types.Identity) *stripe {
	return x.stripes[murmur3.Sum32(id[:])&x.mask]
}

// ============================================================================
//                              注册
// ============================================================================

// Add 注册订阅
//
// 同一来源已有订阅时，旧订阅收到 SupersedeEvent 并被移除。
// 含有无法识别的过滤器时返回 ErrUnknownFilter，不注册也不取代。
func (x *Index) Add(origin Origin, filters []types.Filter) (*Subscription, error) {
	s, err := newSubscription(x, origin, filters, x.maxQueue)
	if err != nil {
		return nil, err
	}

	x.originsMu.Lock()
	prev := x.origins[origin]
	x.origins[origin] = s
	x.originsMu.Unlock()

	x.register(s)
	x.metrics.SubscriptionAdded()
	log.Debug("订阅已注册",
		"id", s.ID.String(),
		"origin", origin.Identity.ShortString(),
		"filters", len(filters))

	if prev != nil {
		prev.supersede()
		x.remove(prev, ErrSuperseded)
		log.Debug("订阅被取代", "id", prev.ID.String(), "by", s.ID.String())
	}
	return s, nil
}

// Remove 注销订阅，重复调用是空操作
func (x *Index) Remove(s *Subscription) {
	x.remove(s, ErrClosed)
}

func (x *Index) remove(s *Subscription, reason error) {
	x.originsMu.Lock()
	if s.removed {
		x.originsMu.Unlock()
		return
	}
	s.removed = true
	if x.origins[s.Origin] == s {
		delete(x.origins, s.Origin)
	}
	x.originsMu.Unlock()

	s.finish(reason)
	x.unregister(s)
	x.metrics.SubscriptionRemoved(errors.Is(s.Err(), ErrOverflow))
}

func (x *Index) register(s *Subscription) {
	if s.immediate {
		x.immMu.Lock()
		x.immediate[s] = struct{}{}
		x.immMu.Unlock()
	}
	for id := range s.idents {
		st := x.stripeFor(id)
		st.mu.Lock()
		set, ok := st.subs[id]
		if !ok {
			set = make(map[*Subscription]struct{})
			st.subs[id] = set
		}
		set[s] = struct{}{}
		st.mu.Unlock()
	}
}

func (x *Index) unregister(s *Subscription) {
	if s.immediate {
		x.immMu.Lock()
		delete(x.immediate, s)
		x.immMu.Unlock()
	}
	for id := range s.idents {
		st := x.stripeFor(id)
		st.mu.Lock()
		if set, ok := st.subs[id]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(st.subs, id)
			}
		}
		st.mu.Unlock()
	}
}

// ============================================================================
//                              扇出
// ============================================================================

// Fanout 把事件投递给所有匹配的订阅，返回投递数
//
// 调用方负责按身份串行化调用（账本在身份分片锁内调用），
// 因此同一身份的事件在每个订阅中保持账本顺序。
// SupersedeEvent 不参与扇出。
func (x *Index) Fanout(ev types.ChangeEvent) int {
	id, ok := types.EventIdentity(ev)
	if !ok {
		return 0
	}

	var targets []*Subscription
	x.immMu.RLock()
	for s := range x.immediate {
		targets = append(targets, s)
	}
	x.immMu.RUnlock()

	st := x.stripeFor(id)
	st.mu.RLock()
	for s := range st.subs[id] {
		// 同时带 Immediate 的订阅已在上面收集
		if !s.immediate {
			targets = append(targets, s)
		}
	}
	st.mu.RUnlock()

	for _, s := range targets {
		x.Deliver(s, ev)
	}
	return len(targets)
}

// Deliver 向单个订阅投递事件，溢出的订阅被关闭
func (x *Index) Deliver(s *Subscription, ev types.ChangeEvent) {
	if s.push(ev) {
		return
	}
	log.Warn("订阅队列溢出，关闭订阅",
		"id", s.ID.String(),
		"origin", s.Origin.Identity.ShortString(),
		"max", s.max)
	x.remove(s, ErrOverflow)
}

// Len 返回活跃订阅数
func (x *Index) Len() int {
	x.originsMu.Lock()
	defer x.originsMu.Unlock()
	return len(x.origins)
}
