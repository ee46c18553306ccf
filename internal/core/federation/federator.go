package federation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/util/logger"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("federation")

const (
	// DefaultInitialBackoff 默认首次重试间隔
	DefaultInitialBackoff = 200 * time.Millisecond

	// DefaultMaxBackoff 默认重试间隔上限
	DefaultMaxBackoff = 30 * time.Second

	// DefaultRequestTimeout 默认单次发送超时
	DefaultRequestTimeout = 5 * time.Second

	// DefaultDedupCacheSize 默认去重缓存大小
	DefaultDedupCacheSize = 4096
)

// Sender 向对端 broker 发送一条公告
type Sender interface {
	Send(ctx context.Context, peer Peer, req *pb.PeerConnectRequest) (*pb.PeerConnectResponse, error)
}

// SenderFunc 以函数实现 Sender
type SenderFunc func(ctx context.Context, peer Peer, req *pb.PeerConnectRequest) (*pb.PeerConnectResponse, error)

// Send 实现 Sender
func (f SenderFunc) Send(ctx context.Context, peer Peer, req *pb.PeerConnectRequest) (*pb.PeerConnectResponse, error) {
	return f(ctx, peer, req)
}

// Config 联邦配置
type Config struct {
	Peers []Peer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxElapsed 单条公告的最长重试时间，0 表示一直重试
	MaxElapsed time.Duration

	RequestTimeout time.Duration
	DedupCacheSize int

	// Stripes 远端路由表分片数
	Stripes int

	Clock   clock.Clock
	Sender  Sender
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics

	// Routes 本地路由表，发送前用于确认路由仍然存在，可为 nil
	Routes *routetable.Table
}

type dedupKey struct {
	origin   types.Identity
	identity types.Identity
}

type fingerprint struct {
	route    uint64
	withdraw bool
	xaddr    uint64
}

// Federator 联邦传播器
type Federator struct {
	cfg     Config
	peers   map[types.Identity]Peer
	workers []*worker
	remote  *RemoteTable
	dedup   *lru.Cache[dedupKey, fingerprint]

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

var _ routetable.Listener = (*Federator)(nil)

// New 创建联邦传播器
func New(cfg Config) (*Federator, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("federation: ledger is required")
	}
	if len(cfg.Peers) > 0 && cfg.Sender == nil {
		return nil, errors.New("federation: sender is required when peers are configured")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.InitialBackoff)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DedupCacheSize <= 0 {
		cfg.DedupCacheSize = DefaultDedupCacheSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	dedup, err := lru.New[dedupKey, fingerprint](cfg.DedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("federation: dedup cache: %w", err)
	}

	f := &Federator{
		cfg:    cfg,
		peers:  make(map[types.Identity]Peer, len(cfg.Peers)),
		remote: newRemoteTable(cfg.Stripes),
		dedup:  dedup,
	}
	for _, p := range cfg.Peers {
		f.peers[p.Identity] = p
		f.workers = append(f.workers, newWorker(f, p))
	}
	return f, nil
}

// Peers 返回已配置的对端
func (f *Federator) Peers() []Peer {
	out := make([]Peer, 0, len(f.cfg.Peers))
	return append(out, f.cfg.Peers...)
}

// IsPeer 判断身份是否为已配置的对端
func (f *Federator) IsPeer(id types.Identity) bool {
	_, ok := f.peers[id]
	return ok
}

// Remote 返回远端路由表
func (f *Federator) Remote() *RemoteTable {
	return f.remote
}

// Pending 返回尚未发出的公告数
func (f *Federator) Pending() int {
	n := 0
	for _, w := range f.workers {
		n += w.len()
	}
	return n
}

// ============================================================================
//                              发送
// ============================================================================

// Announce 把公告交给每个对端的 worker，不会阻塞
func (f *Federator) Announce(a Announcement) {
	if f == nil {
		return
	}
	for _, w := range f.workers {
		w.enqueue(a)
	}
}

// RouteEstablished 实现 routetable.Listener
func (f *Federator) RouteEstablished(route routetable.Snapshot, _ *routetable.Snapshot) {
	f.Announce(FromSnapshot(route, false))
}

// RouteClosed 实现 routetable.Listener
func (f *Federator) RouteClosed(route routetable.Snapshot) {
	f.Announce(FromSnapshot(route, true))
}

// Start 启动每个对端的 worker
func (f *Federator) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range f.workers {
		w := w
		g.Go(func() error { return w.run(ctx) })
	}
	f.cancel = cancel
	f.group = g
	log.Info("联邦已启动", "peers", len(f.workers))
}

// Stop 停止所有 worker，未发出的公告被丢弃
func (f *Federator) Stop() error {
	f.mu.Lock()
	cancel, g := f.cancel, f.group
	f.cancel, f.group = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// current 以本地路由表为准修正公告
func (f *Federator) current(a Announcement) Announcement {
	if a.Withdraw || f.cfg.Routes == nil {
		return a
	}
	if _, ok := f.cfg.Routes.LookupHandle(a.Route); !ok {
		a.Withdraw = true
	}
	return a
}

// ============================================================================
//                              接收
// ============================================================================

// Receive 应用对端发来的公告
//
// 返回 false 表示公告是重复或过期的，没有改变任何状态。
func (f *Federator) Receive(origin types.Identity, a Announcement) (bool, error) {
	peer, ok := f.peers[origin]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPeer, origin.ShortString())
	}

	key := dedupKey{origin: origin, identity: a.Identity}
	fp := fingerprint{route: a.Route, withdraw: a.Withdraw, xaddr: murmur3.Sum64(a.XAddr)}
	if prev, ok := f.dedup.Get(key); ok && prev == fp {
		log.Debug("重复的公告", "peer", peer.String(), "identity", a.Identity.ShortString(), "route", a.Route)
		return false, nil
	}
	f.dedup.Add(key, fp)

	f.cfg.Metrics.FederationReceived()
	changed := f.remote.apply(peer, a, f.cfg.Ledger, f.cfg.Clock.Now())
	log.Debug("收到公告",
		"peer", peer.String(),
		"identity", a.Identity.ShortString(),
		"route", a.Route,
		"withdraw", a.Withdraw,
		"changed", changed)
	return changed, nil
}
