package config

import (
	"fmt"

	"github.com/dep2p/go-carrier/internal/util/logger"
)

// LogConfig 日志配置
//
// 空值表示沿用 CARRIER_LOG_LEVEL / CARRIER_LOG_FORMAT 环境变量。
type LogConfig struct {
	// Level 级别说明，如 "gate=debug,federation=debug,info"
	Level string `json:"level,omitempty"`

	// Format text 或 json
	Format string `json:"format,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	if c.Level != "" {
		if err := logger.DefaultConfig().SetLevels(c.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if _, err := logger.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Apply 让配置对所有子系统 Logger 生效
func (c LogConfig) Apply() error {
	return logger.Configure(c.Level, c.Format)
}
