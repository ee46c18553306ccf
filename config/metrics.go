package config

import "errors"

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标
	Enabled bool `json:"enabled"`

	// ListenAddr 指标 HTTP 监听地址（/metrics）
	ListenAddr string `json:"listen_addr"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    false,
		ListenAddr: "127.0.0.1:9464",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.ListenAddr == "" {
		return errors.New("metrics: listen_addr cannot be empty when enabled")
	}
	return nil
}

// LimitsConfig 连接级限流配置
type LimitsConfig struct {
	// ConnectRate 每个连接每秒允许的连接请求数
	ConnectRate float64 `json:"connect_rate"`

	// ConnectBurst 连接请求突发上限
	ConnectBurst int `json:"connect_burst"`

	// MaxStreamsPerConn 每个连接的最大并发流数
	MaxStreamsPerConn int `json:"max_streams_per_conn"`
}

// DefaultLimitsConfig 返回默认限流配置
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		ConnectRate:       5,
		ConnectBurst:      10,
		MaxStreamsPerConn: 256,
	}
}

// Validate 验证限流配置
func (c LimitsConfig) Validate() error {
	if c.ConnectRate <= 0 {
		return errors.New("limits: connect_rate must be positive")
	}
	if c.ConnectBurst <= 0 {
		return errors.New("limits: connect_burst must be positive")
	}
	if c.MaxStreamsPerConn <= 0 {
		return errors.New("limits: max_streams_per_conn must be positive")
	}
	return nil
}
