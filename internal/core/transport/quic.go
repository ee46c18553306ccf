package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	tlssec "github.com/dep2p/go-carrier/internal/core/security/tls"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ============================================================================
//                              Listener
// ============================================================================

type quicListener struct {
	ln     *quic.Listener
	closed atomic.Bool
}

// ListenQUIC 在 UDP 地址上监听 QUIC
func ListenQUIC(addr string, tlsConf *tls.Config, opts Options) (Listener, error) {
	conf := tlsConf.Clone()
	conf.NextProtos = []string{protocolids.ALPN}

	ln, err := quic.ListenAddr(addr, conf, opts.withDefaults().quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quic listen %s: %w", addr, err)
	}
	return &quicListener{ln: ln}, nil
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	c, err := l.ln.Accept(ctx)
	if err != nil {
		if l.closed.Load() || errors.Is(err, quic.ErrServerClosed) {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	return &quicConn{conn: c}, nil
}

func (l *quicListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *quicListener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.ln.Close()
}

// DialQUIC 拨号 QUIC 连接
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config, opts Options) (Conn, error) {
	conf := tlsConf.Clone()
	conf.NextProtos = []string{protocolids.ALPN}

	c, err := quic.DialAddr(ctx, addr, conf, opts.withDefaults().quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quic dial %s: %w", addr, err)
	}
	return &quicConn{conn: c}, nil
}

// ============================================================================
//                              Conn
// ============================================================================

type quicConn struct {
	conn *quic.Conn
}

func (c *quicConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *quicConn) OpenStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *quicConn) PeerIdentity() (types.Identity, error) {
	return peerIdentity(c.conn.ConnectionState().TLS)
}

func (c *quicConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *quicConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *quicConn) Transport() string    { return QUIC }

func (c *quicConn) Close() error {
	return c.conn.CloseWithError(0, "")
}

func peerIdentity(state tls.ConnectionState) (types.Identity, error) {
	id, err := tlssec.PeerIdentity(state)
	if errors.Is(err, tlssec.ErrNoCertificate) {
		return types.EmptyIdentity, ErrNoPeerIdentity
	}
	return id, err
}
