package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/yamux"
	tec "github.com/jbenet/go-temp-err-catcher"

	"github.com/dep2p/go-carrier/pkg/types"
)

// ============================================================================
//                              Listener
// ============================================================================

// tcpListener 接受 TCP 连接，完成 TLS 握手后建立 yamux 会话
//
// 握手在独立 goroutine 中进行，慢客户端不会阻塞其他连接。
type tcpListener struct {
	ln      net.Listener
	tlsConf *tls.Config
	opts    Options

	conns     chan Conn
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ListenTCP 在 TCP 地址上监听，连接使用 TLS 1.3 + yamux
func ListenTCP(addr string, tlsConf *tls.Config, opts Options) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen %s: %w", addr, err)
	}
	l := &tcpListener{
		ln:      ln,
		tlsConf: tlsConf,
		opts:    opts.withDefaults(),
		conns:   make(chan Conn),
		closed:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

func (l *tcpListener) acceptLoop() {
	defer l.wg.Done()

	var catcher tec.TempErrCatcher
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			select {
			case <-l.closed:
			default:
				log.Warn("TCP accept 失败", "addr", l.ln.Addr().String(), "error", err)
				l.Close()
			}
			return
		}
		l.wg.Add(1)
		go l.upgrade(c)
	}
}

func (l *tcpListener) upgrade(raw net.Conn) {
	defer l.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.HandshakeTimeout)
	defer cancel()

	tc := tls.Server(raw, l.tlsConf)
	if err := tc.HandshakeContext(ctx); err != nil {
		log.Debug("TLS 握手失败", "remote", raw.RemoteAddr().String(), "error", err)
		raw.Close()
		return
	}
	sess, err := yamux.Server(tc, l.opts.yamuxConfig())
	if err != nil {
		log.Debug("yamux 会话建立失败", "remote", raw.RemoteAddr().String(), "error", err)
		tc.Close()
		return
	}

	conn := &yamuxConn{sess: sess, state: tc.ConnectionState()}
	select {
	case l.conns <- conn:
	case <-l.closed:
		conn.Close()
	}
}

func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.ln.Close()
	})
	return err
}

// DialTCP 拨号 TCP 连接并建立 TLS + yamux 会话
func DialTCP(ctx context.Context, addr string, tlsConf *tls.Config, opts Options) (Conn, error) {
	opts = opts.withDefaults()

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s: %w", addr, err)
	}

	tc := tls.Client(raw, tlsConf)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	sess, err := yamux.Client(tc, opts.yamuxConfig())
	if err != nil {
		tc.Close()
		return nil, fmt.Errorf("yamux client: %w", err)
	}
	return &yamuxConn{sess: sess, state: tc.ConnectionState()}, nil
}

// ============================================================================
//                              Conn
// ============================================================================

type yamuxConn struct {
	sess  *yamux.Session
	state tls.ConnectionState
}

func (c *yamuxConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.sess.AcceptStreamWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *yamuxConn) OpenStream(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := c.sess.OpenStream()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *yamuxConn) PeerIdentity() (types.Identity, error) {
	return peerIdentity(c.state)
}

func (c *yamuxConn) LocalAddr() net.Addr  { return c.sess.LocalAddr() }
func (c *yamuxConn) RemoteAddr() net.Addr { return c.sess.RemoteAddr() }
func (c *yamuxConn) Transport() string    { return TCP }

func (c *yamuxConn) Close() error {
	return c.sess.Close()
}
