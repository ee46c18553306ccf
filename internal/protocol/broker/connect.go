package broker

import (
	"context"
	"errors"

	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

// handleConnect 处理 connect 流
//
// 第一条 ConnectRequest 开始握手，后续请求推进握手。完成后流保持空闲，
// 路由被取代时发送 ok=false, supersede=true 并结束；随连接的发布被取代时
// 发送 ok=true, supersede=true，路由保持。流关闭时关闭路由。
func (s *Service) handleConnect(ctx context.Context, st *streams.Stream) error {
	if l := s.limiter(st.Conn); l != nil && !l.Allow() {
		s.deps.Metrics.ConnectRateLimited()
		log.Debug("connect 被限流", "conn", st.Conn.ID.String())
		return st.WriteMsg(&pb.ConnectResponse{Ok: false})
	}

	var req pb.ConnectRequest
	if err := st.ReadMsg(&req); err != nil {
		return err
	}
	id, err := types.IdentityFromBytes(req.Identity)
	if err != nil {
		log.Debug("connect 身份无效", "conn", st.Conn.ID.String(), "error", err)
		return st.WriteMsg(&pb.ConnectResponse{Ok: false})
	}

	sess, out := s.deps.Gate.Begin(gate.Request{
		Identity:  id,
		Timestamp: req.Timestamp,
		Handshake: req.Handshake,
		Paths:     pb.PathsToTypes(req.Paths),
		Observed:  st.Conn.ObservedAddr(),
		XAddr:     req.Xaddr,
		Shadow:    req.Shadow,
	})

	for {
		switch o := out.(type) {
		case gate.Continue:
			if err := st.WriteMsg(&pb.ConnectResponse{Ok: true, Handshake: o.Bytes}); err != nil {
				s.deps.Gate.Cancel(sess)
				return err
			}
			next, err := s.readNext(ctx, st, sess)
			if err != nil {
				s.deps.Gate.Cancel(sess)
				if errors.Is(err, gate.ErrTimeout) {
					log.Debug("connect 握手超时", "identity", id.ShortString())
					return st.WriteMsg(&pb.ConnectResponse{Ok: false})
				}
				return err
			}
			out = s.deps.Gate.Advance(sess, next.Handshake)

		case gate.Done:
			return s.established(ctx, st, id, o)

		case gate.Rejected:
			log.Debug("connect 被拒绝", "identity", id.ShortString(), "reason", o.Reason.String())
			return st.WriteMsg(&pb.ConnectResponse{Ok: false})

		default:
			s.deps.Gate.Cancel(sess)
			return ErrInvalidRequest
		}
	}
}

// readNext 读取下一条握手消息，会话被回收或连接关闭时中断读取
func (s *Service) readNext(ctx context.Context, st *streams.Stream, sess *gate.Session) (*pb.ConnectRequest, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-sess.Expired():
			st.Interrupt()
		case <-ctx.Done():
			st.Interrupt()
		case <-stop:
		}
	}()

	var next pb.ConnectRequest
	if err := st.ReadMsg(&next); err != nil {
		select {
		case <-sess.Expired():
			return nil, gate.ErrTimeout
		default:
		}
		return nil, err
	}
	return &next, nil
}

// established 回复握手结果，然后保持路由直到被取代或流关闭
func (s *Service) established(ctx context.Context, st *streams.Stream, id types.Identity, done gate.Done) error {
	resp := &pb.ConnectResponse{
		Ok:        true,
		Handshake: done.Bytes,
		Route:     done.Route,
		Paths:     pb.PathsFromTypes(done.Paths),
	}

	// 先绑定再回复，设备收到应答后即可在同一连接上发布或订阅
	b := &binding{Identity: id, Route: done.Route}
	st.Conn.SetValue(bindingKey{}, b)
	defer st.Conn.DeleteValue(bindingKey{}, b)

	if err := st.WriteMsg(resp); err != nil {
		s.deps.Routes.Close(done.Route)
		return err
	}

	log.Debug("路由已建立", "identity", id.ShortString(), "route", done.Route, "conn", st.Conn.ID.String())

	// 随连接发布的记录被其他发布取代时，路由仍然有效
	var published <-chan struct{}
	if done.Publication != nil {
		published = done.Publication.Superseded()
	}

	wctx, stop := watch(ctx, st)
	var err error
loop:
	for {
		select {
		case <-done.Superseded:
			log.Debug("路由被取代", "identity", id.ShortString(), "route", done.Route)
			err = st.WriteMsg(&pb.ConnectResponse{Ok: false, Route: done.Route, Supersede: true})
			break loop
		case <-published:
			published = nil
			select {
			case <-done.Superseded:
				continue
			default:
			}
			log.Debug("随连接的发布被取代", "identity", id.ShortString(), "route", done.Route)
			if err = st.WriteMsg(&pb.ConnectResponse{Ok: true, Route: done.Route, Supersede: true}); err != nil {
				break loop
			}
		case <-wctx.Done():
			break loop
		}
	}
	if serr := stop(); err == nil {
		err = serr
	}

	// 已被取代时是空操作
	s.deps.Routes.Close(done.Route)
	return err
}
