package carrier

import (
	"context"
	"sync"
	"time"

	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

// subscriptionBuffer 客户端侧事件缓冲
const subscriptionBuffer = 64

// Subscription 一个订阅流
//
// 订阅先收到当前匹配的记录，然后按 broker 的顺序收到后续变更。
// 同一身份用同一 shadow 再次订阅时，旧订阅以 ErrSuperseded 结束。
type Subscription struct {
	st      *stream
	events  chan types.ChangeEvent
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
	wait    time.Duration

	mu  sync.Mutex
	err error
}

// Handlers 订阅事件回调，为 nil 的回调被忽略
type Handlers struct {
	OnPublish   func(id Identity, xaddr []byte)
	OnUnpublish func(id Identity)
}

// Subscribe 订阅发布状态变更
//
// 没有过滤器时订阅全部变更（Immediate）。
func (c *Client) Subscribe(ctx context.Context, shadow []byte, filters ...types.Filter) (*Subscription, error) {
	if err := c.requireRoute(); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		filters = []types.Filter{types.ImmediateFilter{}}
	}
	req := &pb.SubscribeRequest{Shadow: shadow, Filter: make([]*pb.Filter, 0, len(filters))}
	for _, f := range filters {
		wf, err := pb.FilterFromTypes(f)
		if err != nil {
			return nil, err
		}
		req.Filter = append(req.Filter, wf)
	}

	st, err := c.open(ctx, protocolids.BrokerSubscribe)
	if err != nil {
		return nil, err
	}
	unbind := st.bind(ctx)
	err = st.WriteMsg(req)
	unbind()
	if err != nil {
		st.interrupt()
		return nil, err
	}

	return newSubscription(st, c.opts.closeTimeout), nil
}

func newSubscription(st *stream, wait time.Duration) *Subscription {
	s := &Subscription{
		st:      st,
		events:  make(chan types.ChangeEvent, subscriptionBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		wait:    wait,
	}
	go s.readLoop()
	return s
}

// Next 返回下一条变更
//
// 订阅被取代时返回 ErrSuperseded，流结束时返回 ErrClosed，
// 收到无法识别的变更时返回解码错误并结束订阅。
func (s *Subscription) Next(ctx context.Context) (types.ChangeEvent, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return nil, s.Err()
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run 把变更分发给回调，直到订阅结束或 ctx 取消
func (s *Subscription) Run(ctx context.Context, h Handlers) error {
	for {
		ev, err := s.Next(ctx)
		if err != nil {
			return err
		}
		switch e := ev.(type) {
		case types.PublishEvent:
			if h.OnPublish != nil {
				h.OnPublish(e.Identity, e.XAddr)
			}
		case types.UnpublishEvent:
			if h.OnUnpublish != nil {
				h.OnUnpublish(e.Identity)
			}
		}
	}
}

// Done 订阅结束时关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err 返回订阅结束的原因，订阅存续时为 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 结束订阅
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		err = s.st.closeAndWait(s.done, s.wait)
	})
	return err
}

func (s *Subscription) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		var change pb.SubscribeChange
		if err := s.st.ReadMsg(&change); err != nil {
			s.finish(ErrClosed)
			return
		}
		ev, err := pb.ChangeToEvent(&change)
		if err != nil {
			log.Debug("无法识别的订阅变更", "error", err)
			s.finish(err)
			return
		}
		if _, ok := ev.(types.SupersedeEvent); ok {
			s.finish(ErrSuperseded)
			log.Debug("订阅被取代")
			return
		}
		select {
		case s.events <- ev:
		case <-s.closing:
			s.finish(ErrClosed)
			return
		}
	}
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}
