package federation

import (
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/pathrank"
	"github.com/dep2p/go-carrier/pkg/types"
)

// RemoteRoute 通过联邦学到的路由
type RemoteRoute struct {
	Identity types.Identity
	Route    uint64

	// Origin 公告来源 broker
	Origin Peer

	// Paths 设备在来源 broker 上的路径，并附加来源 broker 的 BrokerOrigin 路径
	Paths []types.Path

	LearnedAt time.Time
}

type remoteEntry struct {
	route RemoteRoute
	pub   *ledger.Publication
}

type remoteStripe struct {
	mu      sync.Mutex
	entries map[types.Identity]*remoteEntry
}

// RemoteTable 远端路由表
type RemoteTable struct {
	stripes []*remoteStripe
	mask    uint32
}

func newRemoteTable(n int) *RemoteTable {
	if n <= 0 || n&(n-1) != 0 {
		n = 64
	}
	t := &RemoteTable{
		stripes: make([]*remoteStripe, n),
		mask:    uint32(n - 1),
	}
	for i := range t.stripes {
		t.stripes[i] = &remoteStripe{entries: make(map[types.Identity]*remoteEntry)}
	}
	return t
}

func (t *RemoteTable) stripeFor(id types.Identity) *remoteStripe {
	return t.stripes[murmur3.Sum32(id[:])&t.mask]
}

// Lookup 返回身份的远端路由
func (t *RemoteTable) Lookup(id types.Identity) (RemoteRoute, bool) {
	st := t.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[id]
	if !ok {
		return RemoteRoute{}, false
	}
	r := e.route
	r.Paths = types.ClonePaths(r.Paths)
	return r, true
}

// Len 返回远端路由数
func (t *RemoteTable) Len() int {
	n := 0
	for _, st := range t.stripes {
		st.mu.Lock()
		n += len(st.entries)
		st.mu.Unlock()
	}
	return n
}

// apply 应用一条公告，返回是否改变了状态
//
// 撤回只对来源和句柄都匹配的当前路由生效；其他公告直接替换（最新者胜）。
// 账本操作在分片锁内完成，锁顺序为 远端分片 → 账本分片。
func (t *RemoteTable) apply(origin Peer, a Announcement, l *ledger.Ledger, now time.Time) bool {
	st := t.stripeFor(a.Identity)
	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.entries[a.Identity]

	if a.Withdraw {
		if cur == nil || cur.route.Route != a.Route || cur.route.Origin.Identity != origin.Identity {
			return false
		}
		delete(st.entries, a.Identity)
		if cur.pub != nil {
			l.Withdraw(cur.pub)
		}
		return true
	}

	paths := a.Paths
	if origin.Addr != "" {
		paths = pathrank.Merge(a.Paths, []types.Path{{Address: origin.Addr, Category: types.PathBrokerOrigin}})
	}
	next := &remoteEntry{route: RemoteRoute{
		Identity:  a.Identity,
		Route:     a.Route,
		Origin:    origin,
		Paths:     paths,
		LearnedAt: now,
	}}

	switch {
	case len(a.XAddr) > 0:
		// Publish 自身会取代旧的发布
		next.pub = l.Publish(a.Identity, a.XAddr, a.Shadow, 0)
	case cur != nil && cur.pub != nil:
		l.Withdraw(cur.pub)
	}
	st.entries[a.Identity] = next
	return true
}
