package config

import (
	"errors"
	"time"
)

// TransportConfig 传输层配置
//
// 配置 broker 支持的传输协议及其参数：
//   - QUIC: 基于 UDP，ALPN "carrier-broker"（推荐）
//   - TCP: TLS 1.3 + yamux 多路复用
type TransportConfig struct {
	// EnableQUIC 是否启用 QUIC 监听
	EnableQUIC bool `json:"enable_quic"`

	// QUICListen QUIC 监听地址
	QUICListen string `json:"quic_listen"`

	// EnableTCP 是否启用 TCP 监听
	EnableTCP bool `json:"enable_tcp"`

	// TCPListen TCP 监听地址
	TCPListen string `json:"tcp_listen"`

	// AdvertiseAddr broker 对外公布的地址
	// 作为 BrokerOrigin 路径下发给设备和联邦 broker，为空时使用 QUIC 监听地址
	AdvertiseAddr string `json:"advertise_addr,omitempty"`

	// MaxIdleTimeout 连接最大空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// KeepAlivePeriod KeepAlive 周期
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// DialTimeout 拨号超时（联邦连接）
	DialTimeout Duration `json:"dial_timeout"`

	// MaxFrameSize 单条消息长度上限（字节）
	MaxFrameSize int `json:"max_frame_size"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableQUIC:      true,
		QUICListen:      "0.0.0.0:7443",
		EnableTCP:       false,
		TCPListen:       "0.0.0.0:7443",
		MaxIdleTimeout:  Duration(60 * time.Second),
		KeepAlivePeriod: Duration(15 * time.Second),
		DialTimeout:     Duration(10 * time.Second),
		MaxFrameSize:    64 << 10,
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if !c.EnableQUIC && !c.EnableTCP {
		return errors.New("transport: at least one of quic or tcp must be enabled")
	}
	if c.EnableQUIC && c.QUICListen == "" {
		return errors.New("transport: quic_listen cannot be empty")
	}
	if c.EnableTCP && c.TCPListen == "" {
		return errors.New("transport: tcp_listen cannot be empty")
	}
	if c.MaxIdleTimeout <= 0 {
		return errors.New("transport: max_idle_timeout must be positive")
	}
	if c.KeepAlivePeriod < 0 {
		return errors.New("transport: keep_alive_period cannot be negative")
	}
	if c.MaxFrameSize <= 0 {
		return errors.New("transport: max_frame_size must be positive")
	}
	return nil
}

// Advertise 返回对外公布的地址
func (c TransportConfig) Advertise() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	if c.EnableQUIC {
		return c.QUICListen
	}
	return c.TCPListen
}

// WithQUIC 设置是否启用 QUIC
func (c TransportConfig) WithQUIC(enabled bool) TransportConfig {
	c.EnableQUIC = enabled
	return c
}

// WithTCP 设置是否启用 TCP
func (c TransportConfig) WithTCP(enabled bool) TransportConfig {
	c.EnableTCP = enabled
	return c
}
