package broker

import (
	"context"
	"errors"
	"io"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	"github.com/dep2p/go-carrier/internal/util/logger"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("protocol/broker")

// Deps 协议处理器的协作者
type Deps struct {
	Gate   *gate.Gate
	Routes *routetable.Table
	Ledger *ledger.Ledger

	// Federator 可为 nil（未配置联邦）
	Federator *federation.Federator

	// Metrics 可为 nil
	Metrics *metrics.Metrics
}

// Service broker 协议服务
type Service struct {
	config *Config
	deps   Deps
}

// New 创建 broker 协议服务
func New(deps Deps, opts ...Option) (*Service, error) {
	if deps.Gate == nil || deps.Routes == nil || deps.Ledger == nil {
		return nil, errors.New("broker: gate, route table and ledger are required")
	}
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &Service{config: config, deps: deps}, nil
}

// Register 在流服务上注册全部处理器
func (s *Service) Register(svc *streams.Service) error {
	handlers := map[string]streams.Handler{
		protocolids.BrokerConnect:   s.handleConnect,
		protocolids.BrokerPublish:   s.handlePublish,
		protocolids.BrokerSubscribe: s.handleSubscribe,
		protocolids.BrokerResolve:   s.handleResolve,
	}
	for path, h := range handlers {
		if err := svc.RegisterHandler(path, h); err != nil {
			return err
		}
	}
	log.Debug("broker 处理器已注册")
	return nil
}

// Unregister 注销全部处理器
func (s *Service) Unregister(svc *streams.Service) error {
	var err error
	for _, path := range []string{
		protocolids.BrokerConnect,
		protocolids.BrokerPublish,
		protocolids.BrokerSubscribe,
		protocolids.BrokerResolve,
	} {
		err = multierr.Append(err, svc.UnregisterHandler(path))
	}
	return err
}

// ============================================================================
//                              连接状态
// ============================================================================

type bindingKey struct{}

type limiterKey struct{}

// binding connect 完成后附加在连接上的身份与路由
type binding struct {
	Identity types.Identity
	Route    uint64
}

// boundRoute 返回连接绑定且仍然有效的路由
func (s *Service) boundRoute(c *streams.Conn) (*binding, routetable.Snapshot, error) {
	v, ok := c.Value(bindingKey{})
	if !ok {
		return nil, routetable.Snapshot{}, ErrNotConnected
	}
	b := v.(*binding)
	snap, ok := s.deps.Routes.LookupHandle(b.Route)
	if !ok {
		return nil, routetable.Snapshot{}, ErrRouteGone
	}
	return b, snap, nil
}

// limiter 返回连接的 connect 限流器，未启用限流时为 nil
func (s *Service) limiter(c *streams.Conn) *rate.Limiter {
	if s.config.ConnectRate <= 0 {
		return nil
	}
	if v, ok := c.Value(limiterKey{}); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(s.config.ConnectRate), s.config.ConnectBurst)
	if !c.CompareAndSwapValue(limiterKey{}, nil, l) {
		v, _ := c.Value(limiterKey{})
		return v.(*rate.Limiter)
	}
	return l
}

// ============================================================================
//                              流关闭检测
// ============================================================================

// watch 在后台读取流直到对端关闭，返回在对端关闭或 ctx 取消时结束的上下文
//
// 空闲期间收到的消息被忽略。stop 中断读取并返回对端造成的读取错误。
func watch(ctx context.Context, st *streams.Stream) (context.Context, func() error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	var readErr error
	go func() {
		defer close(done)
		defer cancel()
		for {
			var ignored pb.Supersede
			if err := st.ReadMsg(&ignored); err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					readErr = err
				}
				return
			}
		}
	}()
	return ctx, func() error {
		cancel()
		st.Interrupt()
		<-done
		return readErr
	}
}
