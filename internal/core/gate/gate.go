package gate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/pathrank"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/security"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("gate")

const (
	// DefaultFreshnessWindow 默认时间戳窗口
	DefaultFreshnessWindow = 30 * time.Second

	// DefaultTimeout 默认握手超时
	DefaultTimeout = 10 * time.Second

	// DefaultReapInterval 默认回收周期
	DefaultReapInterval = time.Second
)

// Config 门控配置
type Config struct {
	FreshnessWindow time.Duration
	Timeout         time.Duration
	ReapInterval    time.Duration

	// Advertise broker 自己的可达地址，作为 BrokerOrigin 路径加入每条路由
	Advertise string

	Clock   clock.Clock
	Crypto  security.Crypto
	Routes  *routetable.Table
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics
}

// Request 连接请求
type Request struct {
	Identity  types.Identity
	Timestamp uint64
	Handshake []byte
	Paths     []types.Path

	// Observed broker 观察到的设备远端地址
	Observed string

	// XAddr 非空时连接同时发布可达性
	XAddr  []byte
	Shadow []byte
}

// Session 一次进行中的握手
type Session struct {
	ID  uuid.UUID
	req Request

	mu        sync.Mutex
	route     *routetable.Route
	responder security.Responder
	active    time.Time
	finished  bool
	reason    Reason
	expired   chan struct{}
}

// Identity 返回请求的身份
func (s *Session) Identity() types.Identity {
	return s.req.Identity
}

// Expired 返回会话被回收时关闭的通道
func (s *Session) Expired() <-chan struct{} {
	return s.expired
}

// Gate 握手门控
type Gate struct {
	cfg Config

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建门控
func New(cfg Config) (*Gate, error) {
	if cfg.Crypto == nil {
		return nil, errors.New("gate: crypto collaborator is required")
	}
	if cfg.Routes == nil {
		return nil, errors.New("gate: route table is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("gate: ledger is required")
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Gate{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

// ============================================================================
//                              新鲜度
// ============================================================================

// CheckFreshness 校验 |now - timestamp| <= FreshnessWindow
func (g *Gate) CheckFreshness(timestamp uint64) error {
	now := g.cfg.Clock.Now()
	ts := time.Unix(int64(timestamp), 0)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if timestamp > uint64(1<<62) || skew > g.cfg.FreshnessWindow {
		return fmt.Errorf("%w: %d (now %d)", ErrStaleTimestamp, timestamp, now.Unix())
	}
	return nil
}

// ============================================================================
//                              握手
// ============================================================================

// Begin 开始一次连接尝试
//
// 返回的 Session 仅在结果为 Continue 时有效；其他结果表示会话已结束。
func (g *Gate) Begin(req Request) (*Session, Outcome) {
	if err := g.CheckFreshness(req.Timestamp); err != nil {
		return nil, g.reject(nil, ReasonStaleTimestamp, err)
	}

	route, err := g.cfg.Routes.Open(req.Identity, req.Paths)
	if err != nil {
		if errors.Is(err, routetable.ErrIdentityBusy) {
			return nil, g.reject(nil, ReasonIdentityBusy, err)
		}
		return nil, g.reject(nil, ReasonHandshakeRejected, err)
	}

	responder, err := g.cfg.Crypto.NewResponder()
	if err != nil {
		g.cfg.Routes.Abort(route)
		return nil, g.reject(nil, ReasonHandshakeRejected, err)
	}

	s := &Session{
		ID:        uuid.New(),
		req:       req,
		route:     route,
		responder: responder,
		active:    g.cfg.Clock.Now(),
		expired:   make(chan struct{}),
	}

	g.mu.Lock()
	g.sessions[s.ID] = s
	g.mu.Unlock()

	log.Debug("握手开始", "session", s.ID.String(), "identity", req.Identity.ShortString())
	return s, g.step(s, req.Handshake)
}

// Advance 把设备的下一条握手消息交给会话
func (g *Gate) Advance(s *Session, msg []byte) Outcome {
	return g.step(s, msg)
}

// Cancel 结束会话并释放预留，已结束的会话是空操作
func (g *Gate) Cancel(s *Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	g.finishLocked(s, ReasonTimeout)
	log.Debug("握手取消", "session", s.ID.String())
}

// Sessions 返回进行中的会话数
func (g *Gate) Sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gate) step(s *Session, msg []byte) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return rejected(s.reason, errors.New("session finished"))
	}

	reply, done, err := s.responder.Step(msg)
	if err != nil {
		g.finishLocked(s, ReasonHandshakeRejected)
		return g.reject(s, ReasonHandshakeRejected, err)
	}
	if !done {
		s.active = g.cfg.Clock.Now()
		return Continue{Bytes: reply}
	}
	return g.completeLocked(s)
}

// completeLocked 握手完成后建立路由
func (g *Gate) completeLocked(s *Session) Outcome {
	req := s.req

	res, err := s.responder.Result()
	if err != nil {
		g.finishLocked(s, ReasonHandshakeRejected)
		return g.reject(s, ReasonHandshakeRejected, err)
	}
	if res.Identity != req.Identity {
		g.finishLocked(s, ReasonHandshakeRejected)
		return g.reject(s, ReasonHandshakeRejected, fmt.Errorf("%w: authenticated %s, requested %s",
			security.ErrIdentityMismatch, res.Identity.ShortString(), req.Identity.ShortString()))
	}
	if res.Timestamp != req.Timestamp {
		g.finishLocked(s, ReasonHandshakeRejected)
		return g.reject(s, ReasonHandshakeRejected, fmt.Errorf("handshake timestamp %d does not match request %d",
			res.Timestamp, req.Timestamp))
	}

	final := pathrank.Final(req.Paths, req.Observed, g.cfg.Advertise)
	s.route.SetMeta(routetable.Meta{
		Timestamp: req.Timestamp,
		Binding:   res.Binding,
		XAddr:     req.XAddr,
		Shadow:    req.Shadow,
	})

	handle, err := g.cfg.Routes.Complete(s.route, final)
	if err != nil {
		g.finishLocked(s, ReasonTimeout)
		if errors.Is(err, routetable.ErrTimeout) || errors.Is(err, routetable.ErrRouteClosed) {
			return g.reject(s, ReasonTimeout, err)
		}
		return g.reject(s, ReasonHandshakeRejected, err)
	}
	s.finished = true
	s.reason = ReasonHandshakeRejected
	g.forget(s)

	// 被取代路由上的记录只由这里的 Publish 取代，必须先于任何失败返回
	var pub *ledger.Publication
	if len(req.XAddr) > 0 {
		pub = g.cfg.Ledger.Publish(req.Identity, req.XAddr, req.Shadow, handle)
		// 路由可能在发布前已被关闭或取代
		if _, ok := g.cfg.Routes.LookupHandle(handle); !ok {
			g.cfg.Ledger.Withdraw(pub)
		}
	}

	sealed, err := s.responder.Seal(binary.BigEndian.AppendUint64(nil, handle))
	if err != nil {
		// 关闭路由同时撤销刚写入的记录
		g.cfg.Routes.Close(handle)
		return g.reject(s, ReasonHandshakeRejected, err)
	}

	g.cfg.Metrics.Handshake(metrics.OutcomeDone)
	log.Debug("握手完成", "session", s.ID.String(), "identity", req.Identity.ShortString(), "route", handle)

	return Done{
		Bytes:       sealed,
		Route:       handle,
		Paths:       final,
		Superseded:  s.route.Superseded(),
		Publication: pub,
	}
}

// finishLocked 结束会话；调用方持有 s.mu
func (g *Gate) finishLocked(s *Session, reason Reason) {
	if s.finished {
		return
	}
	s.finished = true
	s.reason = reason
	g.cfg.Routes.Abort(s.route)
	g.forget(s)
}

func (g *Gate) forget(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.ID)
	g.mu.Unlock()
}

func (g *Gate) reject(s *Session, reason Reason, err error) Rejected {
	g.cfg.Metrics.Handshake(reason.String())
	attrs := []any{"reason", reason.String(), "error", err}
	if s != nil {
		attrs = append(attrs, "session", s.ID.String(), "identity", s.req.Identity.ShortString())
	}
	log.Debug("握手被拒绝", attrs...)
	return rejected(reason, err)
}

// ============================================================================
//                              回收
// ============================================================================

// Start 启动后台回收循环
func (g *Gate) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	ticker := g.cfg.Clock.Ticker(g.cfg.ReapInterval)
	g.wg.Add(1)
	go g.reapLoop(ctx, ticker)
}

// Stop 停止回收循环并取消所有会话
func (g *Gate) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()
	for _, s := range sessions {
		g.Cancel(s)
	}
}

func (g *Gate) reapLoop(ctx context.Context, ticker *clock.Ticker) {
	defer g.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Reap()
		}
	}
}

// Reap 回收没有进展超过 Timeout 的会话，返回回收数
func (g *Gate) Reap() int {
	now := g.cfg.Clock.Now()

	g.mu.Lock()
	candidates := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		candidates = append(candidates, s)
	}
	g.mu.Unlock()

	n := 0
	for _, s := range candidates {
		s.mu.Lock()
		if !s.finished && now.Sub(s.active) >= g.cfg.Timeout {
			g.finishLocked(s, ReasonTimeout)
			close(s.expired)
			n++
			g.reject(s, ReasonTimeout, ErrTimeout)
		}
		s.mu.Unlock()
	}
	return n
}
