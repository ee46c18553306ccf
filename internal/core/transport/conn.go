package transport

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/dep2p/go-carrier/pkg/types"
)

// Stream 一条双向字节流
//
// Close 只关闭写方向；需要中断阻塞的读取时设置读截止时间。
type Stream interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
}

// Conn 一条已完成 TLS 握手的连接
type Conn interface {
	// AcceptStream 等待对端打开的下一条流
	AcceptStream(ctx context.Context) (Stream, error)

	// OpenStream 打开一条新流
	OpenStream(ctx context.Context) (Stream, error)

	// PeerIdentity 返回对端证书对应的身份，对端未出示证书时返回 ErrNoPeerIdentity
	PeerIdentity() (types.Identity, error)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Transport 返回 "quic" 或 "tcp"
	Transport() string

	Close() error
}

// Listener 接受入站连接
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

// 传输名称
const (
	QUIC = "quic"
	TCP  = "tcp"
)

// ParseAddr 拆分带协议前缀的地址，默认 QUIC
func ParseAddr(addr string) (network, hostport string, err error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return QUIC, addr, nil
	}
	switch scheme {
	case QUIC, TCP:
		return scheme, rest, nil
	default:
		return "", "", ErrUnsupportedScheme
	}
}
