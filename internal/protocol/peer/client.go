package peer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-carrier/internal/core/federation"
	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/transport"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Dialer 建立到对端 broker 的连接
type Dialer interface {
	Dial(ctx context.Context, addr string, expected types.Identity) (transport.Conn, error)
}

// Client 联邦协议客户端
//
// 每个对端复用一条连接，连接出错后在下一次发送时重新拨号。
type Client struct {
	dialer       Dialer
	maxFrameSize int

	group singleflight.Group

	mu     sync.Mutex
	conns  map[types.Identity]transport.Conn
	closed bool
}

var _ federation.Sender = (*Client)(nil)

// NewClient 创建客户端
func NewClient(d Dialer, maxFrameSize int) *Client {
	return &Client{
		dialer:       d,
		maxFrameSize: maxFrameSize,
		conns:        make(map[types.Identity]transport.Conn),
	}
}

// Send 实现 federation.Sender
func (c *Client) Send(ctx context.Context, peer federation.Peer, req *pb.PeerConnectRequest) (*pb.PeerConnectResponse, error) {
	conn, err := c.conn(ctx, peer)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, conn, req)
	if err != nil {
		c.drop(peer.Identity, conn)
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, conn transport.Conn, req *pb.PeerConnectRequest) (*pb.PeerConnectResponse, error) {
	s, err := conn.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer s.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	fs := framing.NewStream(s, c.maxFrameSize)
	if err := fs.WritePath(protocolids.PeerConnect); err != nil {
		return nil, err
	}
	if err := fs.WriteMsg(req); err != nil {
		return nil, err
	}
	var resp pb.PeerConnectResponse
	if err := fs.ReadMsg(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyResponse, err)
	}
	return &resp, nil
}

// conn 返回到对端的缓存连接，必要时拨号；并发的拨号合并为一次
func (c *Client) conn(ctx context.Context, peer federation.Peer) (transport.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	if conn, ok := c.conns[peer.Identity]; ok {
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(peer.Identity.String(), func() (any, error) {
		conn, err := c.dialer.Dial(ctx, peer.Addr, peer.Identity)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			conn.Close()
			return nil, ErrClientClosed
		}
		c.conns[peer.Identity] = conn
		log.Debug("已连接对端 broker", "peer", peer.String(), "addr", peer.Addr)
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(transport.Conn), nil
}

func (c *Client) drop(id types.Identity, conn transport.Conn) {
	c.mu.Lock()
	if c.conns[id] == conn {
		delete(c.conns, id)
	}
	c.mu.Unlock()
	conn.Close()
}

// Close 关闭所有连接
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conns := c.conns
	c.conns = make(map[types.Identity]transport.Conn)
	c.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}
	return err
}
