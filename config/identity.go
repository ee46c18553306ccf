package config

// IdentityConfig 身份配置
//
// broker 使用 Ed25519 长期密钥，公钥即 broker 的身份，
// 同时用于自签名 TLS 证书。
type IdentityConfig struct {
	// KeyFile 密钥文件路径（PEM）
	// 如果为空，将在内存中生成临时密钥
	KeyFile string `json:"key_file"`

	// AutoGenerate 当密钥文件不存在时是否自动生成
	AutoGenerate bool `json:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyFile:      "",   // 默认空：内存中生成临时密钥，生产环境应设置持久化路径
		AutoGenerate: true, // 默认启用：当 KeyFile 不存在时自动生成新密钥
	}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	return nil
}

// WithKeyFile 设置密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}

// WithAutoGenerate 设置是否自动生成密钥
func (c IdentityConfig) WithAutoGenerate(auto bool) IdentityConfig {
	c.AutoGenerate = auto
	return c
}
