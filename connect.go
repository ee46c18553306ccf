package carrier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dep2p/go-carrier/internal/core/security/noise"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ConnectOption connect 请求选项
type ConnectOption func(*pb.ConnectRequest)

// WithPublish 让连接同时发布可达性
//
// 发布随路由存在，路由关闭或被取代时撤销；被其他发布取代时
// Route.PublishSuperseded 关闭。
func WithPublish(xaddr, shadow []byte) ConnectOption {
	return func(r *pb.ConnectRequest) {
		r.Xaddr = append([]byte(nil), xaddr...)
		r.Shadow = append([]byte(nil), shadow...)
	}
}

// ============================================================================
//                              Route
// ============================================================================

// Route 一条已建立的路由
//
// connect 流在路由存续期间保持打开，关闭它即断开。
type Route struct {
	// Handle broker 分配的路由句柄
	Handle uint64

	// Paths broker 排序后的最终路径
	Paths []types.Path

	st *stream

	superseded chan struct{}
	replaced   chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	wait       time.Duration

	mu  sync.Mutex
	err error
}

// Superseded 同一身份的新路由建立时关闭
func (r *Route) Superseded() <-chan struct{} {
	return r.superseded
}

// PublishSuperseded 随连接的发布（WithPublish）被同一身份的新发布取代时关闭
//
// 路由本身不受影响。
func (r *Route) PublishSuperseded() <-chan struct{} {
	return r.replaced
}

// Done 路由结束时关闭
func (r *Route) Done() <-chan struct{} {
	return r.done
}

// Err 返回路由结束的原因，路由存续时为 nil
func (r *Route) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close 断开路由
func (r *Route) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.st.closeAndWait(r.done, r.wait)
	})
	return err
}

func (r *Route) interrupt() {
	r.closeOnce.Do(func() {
		r.st.interrupt()
	})
}

// watch 等待 broker 在 connect 流上的后续消息
func (r *Route) watch() {
	defer close(r.done)
	for {
		var resp pb.ConnectResponse
		err := r.st.ReadMsg(&resp)
		if err != nil {
			r.finish(ErrClosed)
			return
		}
		if resp.Supersede && resp.Ok {
			select {
			case <-r.replaced:
			default:
				close(r.replaced)
				log.Debug("随连接的发布被取代", "route", r.Handle)
			}
			continue
		}
		if resp.Supersede {
			r.finish(ErrSuperseded)
			close(r.superseded)
			log.Debug("路由被取代", "route", r.Handle)
			return
		}
	}
}

func (r *Route) finish(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// ============================================================================
//                              Connect
// ============================================================================

// Connect 完成握手并建立路由
//
// 握手消息里的时间戳取自客户端时钟，必须落在 broker 的新鲜度窗口内。
// broker 返回的句柄用会话密钥加密，解开后必须与应答中的句柄一致。
func (c *Client) Connect(ctx context.Context, opts ...ConnectOption) (*Route, error) {
	key := c.opts.key
	ts := uint64(c.opts.clock.Now().Unix())

	init, err := noise.NewInitiator(key.PrivateKey(), ts)
	if err != nil {
		return nil, err
	}
	msg1, err := init.First()
	if err != nil {
		return nil, err
	}

	st, err := c.open(ctx, protocolids.BrokerConnect)
	if err != nil {
		return nil, err
	}
	unbind := st.bind(ctx)

	route, err := c.handshake(st, init, ts, msg1, opts)
	unbind()
	if err != nil {
		st.interrupt()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		st.interrupt()
		return nil, ErrClosed
	}
	c.route = route
	c.mu.Unlock()

	go route.watch()
	log.Debug("路由已建立", "identity", key.ID().ShortString(), "route", route.Handle, "paths", len(route.Paths))
	return route, nil
}

func (c *Client) handshake(st *stream, init *noise.Initiator, ts uint64, msg1 []byte, opts []ConnectOption) (*Route, error) {
	req := &pb.ConnectRequest{
		Identity:  c.opts.key.ID().Bytes(),
		Timestamp: ts,
		Handshake: msg1,
		Paths:     pb.PathsFromTypes(c.opts.paths),
	}
	for _, opt := range opts {
		opt(req)
	}
	if err := st.WriteMsg(req); err != nil {
		return nil, err
	}

	var resp pb.ConnectResponse
	if err := readResponse(st, &resp); err != nil {
		return nil, err
	}
	if resp.Route != 0 {
		return nil, fmt.Errorf("%w: route before handshake finished", pb.ErrInvalidMessage)
	}
	msg3, err := init.Second(resp.Handshake)
	if err != nil {
		return nil, err
	}
	if err := st.WriteMsg(&pb.ConnectRequest{Handshake: msg3}); err != nil {
		return nil, err
	}

	var final pb.ConnectResponse
	if err := readResponse(st, &final); err != nil {
		return nil, err
	}
	plain, err := init.Open(final.Handshake)
	if err != nil {
		return nil, err
	}
	if len(plain) != 8 || binary.BigEndian.Uint64(plain) != final.Route || final.Route == 0 {
		return nil, ErrRouteMismatch
	}

	return &Route{
		Handle:     final.Route,
		Paths:      pb.PathsToTypes(final.Paths),
		st:         st,
		superseded: make(chan struct{}),
		replaced:   make(chan struct{}),
		done:       make(chan struct{}),
		wait:       c.opts.closeTimeout,
	}, nil
}

func readResponse(st *stream, resp *pb.ConnectResponse) error {
	if err := st.ReadMsg(resp); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: connect stream closed", ErrRejected)
		}
		return err
	}
	if !resp.Ok {
		return ErrRejected
	}
	return nil
}
