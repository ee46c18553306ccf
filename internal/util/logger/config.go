package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
)

// 环境变量
const (
	// EnvLevel 级别说明，格式: 子系统=级别,...,默认级别
	EnvLevel = "CARRIER_LOG_LEVEL"

	// EnvFormat 输出格式，text 或 json
	EnvFormat = "CARRIER_LOG_FORMAT"
)

var (
	// ErrInvalidLevel 无法识别的级别名称
	ErrInvalidLevel = errors.New("logger: invalid level")

	// ErrInvalidFormat 无法识别的输出格式
	ErrInvalidFormat = errors.New("logger: invalid format")
)

// LogFormat 日志输出格式
type LogFormat int32

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// ParseFormat 解析格式名称，空字符串表示文本格式
func ParseFormat(name string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("%w: %q", ErrInvalidFormat, name)
	}
}

// Config 日志配置
type Config struct {
	// DefaultLevel 未单独配置的子系统使用的级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的级别，如 gate、routetable、federation
	SubsystemLevels map[string]slog.Level

	Format LogFormat
}

// DefaultConfig info 级别、文本格式
func DefaultConfig() *Config {
	return &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
}

// LevelFor 返回子系统的级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

func (c *Config) clone() *Config {
	out := *c
	out.SubsystemLevels = maps.Clone(c.SubsystemLevels)
	if out.SubsystemLevels == nil {
		out.SubsystemLevels = make(map[string]slog.Level)
	}
	return &out
}

// SetLevels 用级别说明替换级别配置
//
// 说明形如 "gate=debug,transport=warn,info"：带 "=" 的项设置子系统，
// 其余项设置默认级别。任何一项无效时配置保持不变。
func (c *Config) SetLevels(spec string) error {
	def := slog.LevelInfo
	subs := make(map[string]slog.Level)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			levelName = name
		}
		level, ok := ParseLevel(strings.TrimSpace(levelName))
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidLevel, part)
		}
		if scoped {
			subs[strings.TrimSpace(name)] = level
		} else {
			def = level
		}
	}
	c.DefaultLevel = def
	c.SubsystemLevels = subs
	return nil
}

// FromEnv 从环境变量读取配置
//
// 无效的值被忽略并保留默认值，进程启动不会因为日志配置失败。
func FromEnv(getenv func(string) string) *Config {
	cfg := DefaultConfig()
	if spec := getenv(EnvLevel); spec != "" {
		if err := cfg.SetLevels(spec); err != nil {
			fmt.Fprintf(os.Stderr, "%s ignored: %v\n", EnvLevel, err)
		}
	}
	if name := getenv(EnvFormat); name != "" {
		if f, err := ParseFormat(name); err == nil {
			cfg.Format = f
		} else {
			fmt.Fprintf(os.Stderr, "%s ignored: %v\n", EnvFormat, err)
		}
	}
	return cfg
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
