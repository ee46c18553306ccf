package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-carrier/pkg/types"
)

// Origin 订阅来源，同一来源至多一个活跃订阅
type Origin struct {
	Identity types.Identity
	Shadow   string
}

// Subscription 一个订阅及其事件队列
type Subscription struct {
	// ID 订阅标识，仅用于日志
	ID     uuid.UUID
	Origin Origin

	filters   []types.Filter
	immediate bool
	idents    map[types.Identity]struct{}
	max       int
	index     *Index
	removed   bool // 由 index.originsMu 保护

	mu     sync.Mutex
	queue  []types.ChangeEvent
	closed bool
	err    error
	notify chan struct{}
	done   chan struct{}
}

func newSubscription(x *Index, origin Origin, filters []types.Filter, max int) (*Subscription, error) {
	s := &Subscription{
		ID:      uuid.New(),
		Origin:  origin,
		filters: append([]types.Filter(nil), filters...),
		idents:  make(map[types.Identity]struct{}),
		max:     max,
		index:   x,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for i, f := range filters {
		switch v := f.(type) {
		case types.ImmediateFilter:
			s.immediate = true
		case types.IdentityFilter:
			s.idents[v.Identity] = struct{}{}
		default:
			return nil, fmt.Errorf("%w: filter %d is %T", ErrUnknownFilter, i, f)
		}
	}
	return s, nil
}

// Filters 返回注册时的过滤器（保持顺序）
func (s *Subscription) Filters() []types.Filter {
	return append([]types.Filter(nil), s.filters...)
}

// Matches 判断任一过滤器是否匹配该身份
func (s *Subscription) Matches(id types.Identity) bool {
	if s.immediate {
		return true
	}
	_, ok := s.idents[id]
	return ok
}

// Next 阻塞直到有事件、订阅结束或 ctx 取消
//
// 订阅结束后先交付队列中剩余的事件，然后返回结束原因。
func (s *Subscription) Next(ctx context.Context) (types.ChangeEvent, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Done 返回订阅结束时关闭的通道
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err 返回结束原因，未结束时为 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Len 返回待投递的事件数
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close 取消订阅
func (s *Subscription) Close() {
	s.index.Remove(s)
}

// push 入队一个事件；返回 false 表示队列溢出，订阅已被标记结束
func (s *Subscription) push(ev types.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if s.max > 0 && len(s.queue) >= s.max {
		s.finishLocked(ErrOverflow)
		return false
	}
	s.queue = append(s.queue, ev)
	s.wake()
	return true
}

// supersede 投递 SupersedeEvent 并结束订阅，不受队列上限约束
func (s *Subscription) supersede() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, types.SupersedeEvent{})
	s.finishLocked(ErrSuperseded)
}

// finish 结束订阅；返回 false 表示此前已结束
func (s *Subscription) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.finishLocked(err)
	return true
}

func (s *Subscription) finishLocked(err error) {
	s.closed = true
	s.err = err
	close(s.done)
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
