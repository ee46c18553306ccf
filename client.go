package carrier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("carrier")

// Client 到一个 broker 的连接
//
// 一个 Client 同时只有一条有效路由；再次 Connect 会让 broker 取代旧路由。
type Client struct {
	opts   options
	broker types.Identity
	tr     *transport.Transport
	conn   transport.Conn

	mu     sync.Mutex
	route  *Route
	closed bool
}

// Dial 连接 broker
//
// addr 默认使用 QUIC，"tcp://" 前缀使用 TCP。broker 证书必须对应 brokerID。
func Dial(ctx context.Context, addr string, brokerID Identity, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.key == nil {
		return nil, ErrNoIdentity
	}

	tr, err := transport.New(o.key, o.transport)
	if err != nil {
		return nil, err
	}
	conn, err := tr.Dial(ctx, addr, brokerID)
	if err != nil {
		tr.Close()
		return nil, err
	}
	log.Debug("已连接 broker", "addr", addr, "broker", brokerID.ShortString(), "transport", conn.Transport())

	return &Client{
		opts:   o,
		broker: brokerID,
		tr:     tr,
		conn:   conn,
	}, nil
}

// Identity 返回设备身份
func (c *Client) Identity() Identity {
	return c.opts.key.ID()
}

// Broker 返回 broker 身份
func (c *Client) Broker() Identity {
	return c.broker
}

// Route 返回当前路由，没有时返回 nil
func (c *Client) Route() *Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}

// Close 关闭所有流和底层连接
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	route := c.route
	c.route = nil
	c.mu.Unlock()

	var err error
	if route != nil {
		route.interrupt()
	}
	err = multierr.Append(err, c.conn.Close())
	err = multierr.Append(err, c.tr.Close())
	return err
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// requireRoute 发布与订阅前检查连接上已有路由
func (c *Client) requireRoute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.route == nil {
		return ErrNotConnected
	}
	select {
	case <-c.route.Done():
		return ErrNotConnected
	default:
	}
	return nil
}

// ============================================================================
//                              流
// ============================================================================

// stream 一条已写入路径头的客户端流
type stream struct {
	*framing.Stream
	raw transport.Stream
}

func (c *Client) open(ctx context.Context, path string) (*stream, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	raw, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	st := &stream{Stream: framing.NewStream(raw, c.opts.maxFrameSize), raw: raw}
	if err := st.WritePath(path); err != nil {
		raw.Close()
		return nil, err
	}
	return st, nil
}

// bind 让 ctx 的截止时间和取消作用于流上的读写，返回的函数解除绑定
func (st *stream) bind(ctx context.Context) func() {
	if d, ok := ctx.Deadline(); ok {
		st.raw.SetDeadline(d)
	}
	stop := context.AfterFunc(ctx, func() {
		st.raw.SetDeadline(time.Now())
	})
	return func() {
		stop()
		st.raw.SetDeadline(time.Time{})
	}
}

// interrupt 中断阻塞的读取并关闭写方向
func (st *stream) interrupt() {
	st.raw.SetReadDeadline(time.Now())
	st.raw.Close()
}

// closeAndWait 关闭写方向，等待读循环结束，超时后强制中断
func (st *stream) closeAndWait(done <-chan struct{}, timeout time.Duration) error {
	err := st.raw.Close()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		st.interrupt()
		<-done
	}
	return err
}
