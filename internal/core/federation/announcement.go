package federation

import (
	"fmt"

	"github.com/dep2p/go-carrier/internal/core/routetable"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Peer 一个联邦对端 broker
type Peer struct {
	Identity types.Identity
	Addr     string
}

// String 返回对端的简短描述
func (p Peer) String() string {
	return p.Identity.ShortString()
}

// Announcement 一条路由公告
//
// 公告描述路由的完整当前状态：不带 xaddr 的公告表示该路由没有发布。
type Announcement struct {
	Identity types.Identity
	Route    uint64
	Paths    []types.Path

	// Binding 握手通道绑定值，放在 PeerConnectRequest.handshake 中
	Binding []byte

	XAddr    []byte
	Shadow   []byte
	Withdraw bool
}

// FromSnapshot 根据路由快照构造公告
func FromSnapshot(s routetable.Snapshot, withdraw bool) Announcement {
	return Announcement{
		Identity: s.Identity,
		Route:    s.Handle,
		Paths:    s.Paths,
		Binding:  s.Meta.Binding,
		XAddr:    s.Meta.XAddr,
		Shadow:   s.Meta.Shadow,
		Withdraw: withdraw,
	}
}

// Request 转换为线上请求，timestamp 为发送时刻
func (a Announcement) Request(timestamp uint64) *pb.PeerConnectRequest {
	return &pb.PeerConnectRequest{
		Identity:  a.Identity.Bytes(),
		Timestamp: timestamp,
		Handshake: a.Binding,
		Route:     a.Route,
		Paths:     pb.PathsFromTypes(a.Paths),
		Withdraw:  a.Withdraw,
		Xaddr:     a.XAddr,
		Shadow:    a.Shadow,
	}
}

// FromRequest 解析线上请求
func FromRequest(req *pb.PeerConnectRequest) (Announcement, error) {
	id, err := types.IdentityFromBytes(req.Identity)
	if err != nil {
		return Announcement{}, fmt.Errorf("%w: %v", ErrInvalidAnnouncement, err)
	}
	if req.Route == 0 {
		return Announcement{}, fmt.Errorf("%w: route handle is zero", ErrInvalidAnnouncement)
	}
	return Announcement{
		Identity: id,
		Route:    req.Route,
		Paths:    pb.PathsToTypes(req.Paths),
		Binding:  req.Handshake,
		XAddr:    req.Xaddr,
		Shadow:   req.Shadow,
		Withdraw: req.Withdraw,
	}, nil
}
