package streams

import (
	"time"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/metrics"
)

// Config 流服务配置
type Config struct {
	// PathTimeout 读取路径头的超时
	PathTimeout time.Duration

	// MaxFrameSize 单条消息长度上限
	MaxFrameSize int

	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		PathTimeout:  10 * time.Second,
		MaxFrameSize: framing.DefaultMaxFrameSize,
	}
}

// Option 定义配置选项函数
type Option func(*Config)

// WithPathTimeout 设置路径头读取超时
func WithPathTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.PathTimeout = timeout
	}
}

// WithMaxFrameSize 设置消息长度上限
func WithMaxFrameSize(size int) Option {
	return func(c *Config) {
		c.MaxFrameSize = size
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}
