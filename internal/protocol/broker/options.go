package broker

// Config broker 协议配置
type Config struct {
	// ConnectRate 每个连接每秒允许的 connect 尝试数，<= 0 表示不限制
	ConnectRate float64

	// ConnectBurst 突发上限
	ConnectBurst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ConnectRate:  5,
		ConnectBurst: 10,
	}
}

// Option 定义配置选项函数
type Option func(*Config)

// WithConnectRate 设置每个连接的 connect 速率限制
func WithConnectRate(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.ConnectRate = perSecond
		c.ConnectBurst = burst
	}
}
