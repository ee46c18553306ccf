package transport

import (
	"io"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/quic-go/quic-go"
)

// Options 传输参数
type Options struct {
	MaxIdleTimeout   time.Duration
	KeepAlivePeriod  time.Duration
	HandshakeTimeout time.Duration

	// MaxStreams 每个连接的最大并发入站流数
	MaxStreams int
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		MaxIdleTimeout:   60 * time.Second,
		KeepAlivePeriod:  15 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxStreams:       256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIdleTimeout <= 0 {
		o.MaxIdleTimeout = d.MaxIdleTimeout
	}
	if o.KeepAlivePeriod < 0 {
		o.KeepAlivePeriod = 0
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.MaxStreams <= 0 {
		o.MaxStreams = d.MaxStreams
	}
	return o
}

func (o Options) quicConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout: o.HandshakeTimeout,
		MaxIdleTimeout:       o.MaxIdleTimeout,
		KeepAlivePeriod:      o.KeepAlivePeriod,
		MaxIncomingStreams:   int64(o.MaxStreams),
		// 不使用单向流
		MaxIncomingUniStreams: -1,
	}
}

func (o Options) yamuxConfig() *yamux.Config {
	cfg := &yamux.Config{
		AcceptBacklog:          o.MaxStreams,
		EnableKeepAlive:        o.KeepAlivePeriod > 0,
		KeepAliveInterval:      o.KeepAlivePeriod,
		ConnectionWriteTimeout: 10 * time.Second,
		MaxStreamWindowSize:    256 * 1024,
		StreamOpenTimeout:      75 * time.Second,
		StreamCloseTimeout:     5 * time.Minute,
		LogOutput:              io.Discard,
	}
	if !cfg.EnableKeepAlive {
		cfg.KeepAliveInterval = 30 * time.Second
	}
	return cfg
}
