package peer

import (
	"context"
	"errors"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	"github.com/dep2p/go-carrier/internal/util/logger"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("protocol/peer")

// FreshnessChecker 校验请求时间戳
type FreshnessChecker interface {
	CheckFreshness(timestamp uint64) error
}

// Service 联邦协议服务端
type Service struct {
	federator *federation.Federator
	freshness FreshnessChecker
	paths     []*pb.Path
}

// NewService 创建联邦协议服务端
//
// advertise 是本 broker 的对外地址，作为 BrokerOrigin 路径返回给对端。
func NewService(f *federation.Federator, freshness FreshnessChecker, advertise string) (*Service, error) {
	if f == nil || freshness == nil {
		return nil, errors.New("peer: federator and freshness checker are required")
	}
	var paths []*pb.Path
	if advertise != "" {
		paths = pb.PathsFromTypes([]types.Path{{Address: advertise, Category: types.PathBrokerOrigin}})
	}
	return &Service{federator: f, freshness: freshness, paths: paths}, nil
}

// Register 在流服务上注册处理器
func (s *Service) Register(svc *streams.Service) error {
	return svc.RegisterHandler(protocolids.PeerConnect, s.handleConnect)
}

func (s *Service) handleConnect(_ context.Context, st *streams.Stream) error {
	var req pb.PeerConnectRequest
	if err := st.ReadMsg(&req); err != nil {
		return err
	}
	return st.WriteMsg(s.apply(st.Conn, &req))
}

func (s *Service) apply(conn *streams.Conn, req *pb.PeerConnectRequest) *pb.PeerConnectResponse {
	reject := &pb.PeerConnectResponse{Ok: false}

	origin, err := conn.PeerIdentity()
	if err != nil {
		log.Debug("对端身份不可用", "conn", conn.ID.String(), "error", err)
		return reject
	}
	if !s.federator.IsPeer(origin) {
		log.Warn("拒绝未配置的 broker", "identity", origin.ShortString(), "remote", conn.ObservedAddr())
		return reject
	}
	if err := s.freshness.CheckFreshness(req.Timestamp); err != nil {
		log.Debug("公告时间戳过期", "peer", origin.ShortString(), "error", err)
		return reject
	}
	a, err := federation.FromRequest(req)
	if err != nil {
		log.Debug("公告无效", "peer", origin.ShortString(), "error", err)
		return reject
	}
	if _, err := s.federator.Receive(origin, a); err != nil {
		log.Debug("应用公告失败", "peer", origin.ShortString(), "error", err)
		return reject
	}
	return &pb.PeerConnectResponse{Ok: true, Paths: s.paths}
}
