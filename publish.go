package carrier

import (
	"context"
	"sync"
	"time"

	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
)

// Publication 一次发布
//
// 发布流保持打开期间记录有效；关闭流即撤销。
type Publication struct {
	XAddr  []byte
	Shadow []byte

	st         *stream
	superseded chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	wait       time.Duration

	mu  sync.Mutex
	err error
}

// Publish 发布设备的可达性
//
// 同一身份已有的发布（无论来自哪条路由）会被取代。
func (c *Client) Publish(ctx context.Context, xaddr, shadow []byte) (*Publication, error) {
	if err := c.requireRoute(); err != nil {
		return nil, err
	}
	st, err := c.open(ctx, protocolids.BrokerPublish)
	if err != nil {
		return nil, err
	}
	unbind := st.bind(ctx)
	err = st.WriteMsg(&pb.PublishRequest{Xaddr: xaddr, Shadow: shadow})
	unbind()
	if err != nil {
		st.interrupt()
		return nil, err
	}

	p := &Publication{
		XAddr:      append([]byte(nil), xaddr...),
		Shadow:     append([]byte(nil), shadow...),
		st:         st,
		superseded: make(chan struct{}),
		done:       make(chan struct{}),
		wait:       c.opts.closeTimeout,
	}
	go p.watch()
	log.Debug("已发布", "identity", c.Identity().ShortString(), "xaddr_len", len(xaddr))
	return p, nil
}

// Superseded 被同一身份的新发布取代时关闭
func (p *Publication) Superseded() <-chan struct{} {
	return p.superseded
}

// Done 发布流结束时关闭
func (p *Publication) Done() <-chan struct{} {
	return p.done
}

// Err 返回发布结束的原因
func (p *Publication) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close 撤销发布
func (p *Publication) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.st.closeAndWait(p.done, p.wait)
	})
	return err
}

func (p *Publication) watch() {
	defer close(p.done)
	for {
		var change pb.PublishChange
		if err := p.st.ReadMsg(&change); err != nil {
			p.finish(ErrClosed)
			return
		}
		if _, ok := change.M.(*pb.PublishChange_Supersede); ok {
			p.finish(ErrSuperseded)
			close(p.superseded)
			return
		}
	}
}

func (p *Publication) finish(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}
