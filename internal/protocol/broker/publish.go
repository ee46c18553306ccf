package broker

import (
	"context"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
)

// handlePublish 处理 publish 流
func (s *Service) handlePublish(ctx context.Context, st *streams.Stream) error {
	var req pb.PublishRequest
	if err := st.ReadMsg(&req); err != nil {
		return err
	}
	if len(req.Xaddr) == 0 {
		return ErrInvalidRequest
	}
	b, _, err := s.boundRoute(st.Conn)
	if err != nil {
		return err
	}

	pub := s.deps.Ledger.Publish(b.Identity, req.Xaddr, req.Shadow, b.Route)
	snap, ok := s.deps.Routes.LookupHandle(b.Route)
	if !ok {
		// 路由在发布期间被关闭
		s.deps.Ledger.Withdraw(pub)
		return ErrRouteGone
	}
	s.announce(snap, pub.XAddr, pub.Shadow)

	wctx, stop := watch(ctx, st)
	if awaitPublication(wctx, pub) {
		log.Debug("发布被取代", "identity", b.Identity.ShortString(), "publication", pub.ID.String())
		err = st.WriteMsg(&pb.PublishChange{M: &pb.PublishChange_Supersede{Supersede: &pb.Supersede{}}})
	}
	if serr := stop(); err == nil {
		err = serr
	}

	s.withdraw(pub)
	return err
}

// awaitPublication 等待记录结束或 ctx 取消，返回记录是否被取代
func awaitPublication(ctx context.Context, pub *ledger.Publication) bool {
	select {
	case <-pub.Done():
		return pub.WasSuperseded()
	case <-ctx.Done():
		return false
	}
}

// withdraw 撤销仍然是当前记录的发布，并通告路由已不再携带发布
func (s *Service) withdraw(pub *ledger.Publication) {
	if !s.deps.Ledger.Withdraw(pub) {
		return
	}
	if snap, ok := s.deps.Routes.LookupHandle(pub.Route); ok {
		s.announce(snap, nil, nil)
	}
}

// announce 把路由及其发布状态交给联邦
func (s *Service) announce(snap routetable.Snapshot, xaddr, shadow []byte) {
	a := federation.FromSnapshot(snap, false)
	a.XAddr = xaddr
	a.Shadow = shadow
	s.deps.Federator.Announce(a)
}
