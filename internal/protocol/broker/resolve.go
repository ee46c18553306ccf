package broker

import (
	"context"

	"github.com/dep2p/go-carrier/internal/protocol/streams"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

// handleResolve 处理 resolve 流：一次请求，一次应答
func (s *Service) handleResolve(_ context.Context, st *streams.Stream) error {
	var req pb.ResolveRequest
	if err := st.ReadMsg(&req); err != nil {
		return err
	}
	id, err := types.IdentityFromBytes(req.Identity)
	if err != nil {
		return st.WriteMsg(&pb.ResolveResponse{Ok: false})
	}
	return st.WriteMsg(s.resolve(id))
}

func (s *Service) resolve(id types.Identity) *pb.ResolveResponse {
	if snap, ok := s.deps.Routes.Lookup(id); ok {
		return &pb.ResolveResponse{Ok: true, Route: snap.Handle, Paths: pb.PathsFromTypes(snap.Paths)}
	}
	if f := s.deps.Federator; f != nil {
		if rr, ok := f.Remote().Lookup(id); ok {
			return &pb.ResolveResponse{Ok: true, Route: rr.Route, Paths: pb.PathsFromTypes(rr.Paths)}
		}
	}
	return &pb.ResolveResponse{Ok: false}
}
