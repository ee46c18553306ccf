package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-carrier/internal/core/identity"
	tlssec "github.com/dep2p/go-carrier/internal/core/security/tls"
	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

var log = logger.Logger("transport")

// Transport 管理 broker 的监听器并为客户端和联邦拨号
type Transport struct {
	opts      Options
	builder   *tlssec.ConfigBuilder
	serverTLS *tls.Config

	mu        sync.Mutex
	listeners []Listener
	closed    bool
}

// New 创建传输，证书由身份密钥自签名
func New(id *identity.Identity, opts Options) (*Transport, error) {
	builder := tlssec.NewConfigBuilder(id).WithNextProtos([]string{protocolids.ALPN})
	serverTLS, err := builder.BuildServerConfig()
	if err != nil {
		return nil, fmt.Errorf("transport: server tls: %w", err)
	}
	return &Transport{
		opts:      opts.withDefaults(),
		builder:   builder,
		serverTLS: serverTLS,
	}, nil
}

// Listen 在地址上监听，network 为 QUIC 或 TCP
func (t *Transport) Listen(network, addr string) (Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	var (
		l   Listener
		err error
	)
	switch network {
	case QUIC:
		l, err = ListenQUIC(addr, t.serverTLS, t.opts)
	case TCP:
		l, err = ListenTCP(addr, t.serverTLS, t.opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, network)
	}
	if err != nil {
		return nil, err
	}
	t.listeners = append(t.listeners, l)
	log.Info("开始监听", "transport", network, "addr", l.Addr().String())
	return l, nil
}

// Listeners 返回已创建的监听器
func (t *Transport) Listeners() []Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Listener(nil), t.listeners...)
}

// Dial 拨号到地址
//
// expected 非空时要求对端证书属于该身份。
func (t *Transport) Dial(ctx context.Context, addr string, expected types.Identity) (Conn, error) {
	network, hostport, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	conf, err := t.builder.BuildClientConfig(expected)
	if err != nil {
		return nil, fmt.Errorf("transport: client tls: %w", err)
	}
	if network == TCP {
		return DialTCP(ctx, hostport, conf, t.opts)
	}
	return DialQUIC(ctx, hostport, conf, t.opts)
}

// Close 关闭所有监听器
func (t *Transport) Close() error {
	t.mu.Lock()
	listeners := t.listeners
	t.listeners = nil
	t.closed = true
	t.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	return err
}
