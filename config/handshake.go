package config

import (
	"errors"
	"time"
)

// HandshakeConfig 握手配置
type HandshakeConfig struct {
	// FreshnessWindow 请求时间戳允许的偏差（前后对称）
	FreshnessWindow Duration `json:"freshness_window"`

	// Timeout 握手会话无进展的最长时间，超时视为取消
	Timeout Duration `json:"timeout"`

	// ReapInterval 过期会话的清理周期
	ReapInterval Duration `json:"reap_interval"`
}

// DefaultHandshakeConfig 返回默认握手配置
func DefaultHandshakeConfig() HandshakeConfig {
	return HandshakeConfig{
		FreshnessWindow: Duration(30 * time.Second),
		Timeout:         Duration(10 * time.Second),
		ReapInterval:    Duration(time.Second),
	}
}

// Validate 验证握手配置
func (c HandshakeConfig) Validate() error {
	if c.FreshnessWindow <= 0 {
		return errors.New("handshake: freshness_window must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("handshake: timeout must be positive")
	}
	if c.ReapInterval <= 0 {
		return errors.New("handshake: reap_interval must be positive")
	}
	return nil
}
