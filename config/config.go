// Package config 提供 carrier broker 的统一配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，提供 DefaultXConfig() 与 Validate()
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Transport.QUICListen = ":7443"
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("broker.json")
package config

// Config 是 carrier broker 的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: broker 长期身份密钥
//   - Transport: 监听地址与传输参数（QUIC / TCP+yamux）
//   - Handshake: 握手新鲜度窗口与超时
//   - Routes: 路由表分片
//   - Subscriptions: 订阅索引分片与队列上限
//   - Federation: 联邦 broker 列表与重试策略
//   - Storage: 路由句柄持久化
//   - Metrics: Prometheus 指标
//   - Limits: 连接级速率限制
//   - Log: 子系统日志级别与格式
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Handshake 握手配置
	Handshake HandshakeConfig `json:"handshake"`

	// Routes 路由表配置
	Routes RoutesConfig `json:"routes"`

	// Subscriptions 订阅配置
	Subscriptions SubscriptionsConfig `json:"subscriptions"`

	// Federation 联邦配置
	Federation FederationConfig `json:"federation"`

	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Limits 限流配置
	Limits LimitsConfig `json:"limits"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，可直接用于单机 broker。
func NewConfig() *Config {
	return &Config{
		Identity:      DefaultIdentityConfig(),
		Transport:     DefaultTransportConfig(),
		Handshake:     DefaultHandshakeConfig(),
		Routes:        DefaultRoutesConfig(),
		Subscriptions: DefaultSubscriptionsConfig(),
		Federation:    DefaultFederationConfig(),
		Storage:       DefaultStorageConfig(),
		Metrics:       DefaultMetricsConfig(),
		Limits:        DefaultLimitsConfig(),
		Log:           DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，返回遇到的第一个错误。
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Handshake.Validate(); err != nil {
		return err
	}
	if err := c.Routes.Validate(); err != nil {
		return err
	}
	if err := c.Subscriptions.Validate(); err != nil {
		return err
	}
	if err := c.Federation.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
