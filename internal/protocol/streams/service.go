package streams

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/protocolids"
)

var log = logger.Logger("protocol/streams")

// Handler 处理一条入站流，返回后流的写方向被关闭
type Handler func(ctx context.Context, s *Stream) error

// Service 流分发服务
type Service struct {
	config *Config

	mu       sync.RWMutex
	handlers map[string]Handler
	conns    map[*Conn]struct{}
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New 创建流服务
func New(opts ...Option) *Service {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &Service{
		config:   config,
		handlers: make(map[string]Handler),
		conns:    make(map[*Conn]struct{}),
	}
}

// ============================================================================
//                              处理器
// ============================================================================

// RegisterHandler 注册路径处理器
func (s *Service) RegisterHandler(protocol string, handler Handler) error {
	if err := validateProtocol(protocol); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[protocol]; exists {
		return ErrHandlerExists
	}
	s.handlers[protocol] = handler
	return nil
}

// UnregisterHandler 注销路径处理器
func (s *Service) UnregisterHandler(protocol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[protocol]; !exists {
		return ErrHandlerNotFound
	}
	delete(s.handlers, protocol)
	return nil
}

func (s *Service) handler(protocol string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[protocol]
	return h, ok
}

func validateProtocol(protocol string) error {
	if protocol == "" {
		return ErrEmptyProtocol
	}
	if !protocolids.Known(protocol) {
		return ErrInvalidProtocol
	}
	return nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动服务
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	// Fx OnStart 的 ctx 在返回后会被取消，后台循环使用独立的上下文
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.started = true
	log.Info("流服务已启动")
	return nil
}

// Stop 停止服务，关闭所有连接并等待处理器退出
func (s *Service) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.cancel()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	log.Info("流服务已停止")
	return nil
}

// Serve 在监听器上接受连接，直到监听器关闭或服务停止
func (s *Service) Serve(l transport.Listener) error {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return ErrNotStarted
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		for {
			c, err := l.Accept(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, transport.ErrListenerClosed) {
					log.Warn("接受连接失败", "addr", l.Addr().String(), "error", err)
				}
				return
			}
			s.ServeConn(c)
		}
	}()
	return nil
}

// ServeConn 在后台处理一个已建立的连接
func (s *Service) ServeConn(c transport.Conn) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		c.Close()
		return
	}
	conn := newConn(s.ctx, c)
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runConn(conn)
}

func (s *Service) runConn(conn *Conn) {
	defer s.wg.Done()
	defer func() {
		conn.cancel()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log.Debug("连接已建立", "conn", conn.ID.String(), "transport", conn.Transport(), "remote", conn.ObservedAddr())

	var streams sync.WaitGroup
	defer streams.Wait()
	for {
		st, err := conn.AcceptStream(conn.ctx)
		if err != nil {
			log.Debug("连接已结束", "conn", conn.ID.String(), "error", err)
			return
		}
		streams.Add(1)
		go func() {
			defer streams.Done()
			s.handleStream(conn, st)
		}()
	}
}

func (s *Service) handleStream(conn *Conn, raw transport.Stream) {
	fs := framing.NewStream(raw, s.config.MaxFrameSize)
	stream := &Stream{Stream: fs, Conn: conn, raw: raw}
	defer stream.Close()

	if s.config.PathTimeout > 0 {
		_ = raw.SetReadDeadline(time.Now().Add(s.config.PathTimeout))
	}
	path, err := fs.ReadPath()
	if err != nil {
		if isProtocolError(err) {
			log.Debug("无效的路径头，关闭连接", "conn", conn.ID.String(), "error", err)
			conn.cancel()
			conn.Close()
		} else if isTimeout(err) {
			log.Debug("读取路径头超时", "conn", conn.ID.String())
		}
		return
	}
	_ = raw.SetReadDeadline(time.Time{})
	stream.Path = path

	h, ok := s.handler(path)
	if !ok {
		log.Debug("未知的流路径", "conn", conn.ID.String(), "path", path)
		return
	}
	s.config.Metrics.StreamOpened(path)

	if err := h(conn.ctx, stream); err != nil {
		if isProtocolError(err) {
			log.Debug("协议错误，关闭连接", "conn", conn.ID.String(), "path", path, "error", err)
			conn.cancel()
			conn.Close()
			return
		}
		log.Debug("流处理结束", "conn", conn.ID.String(), "path", path, "error", err)
	}
}
