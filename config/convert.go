package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现在 JSON 中的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "transport": {"quic_listen": "0.0.0.0:7443", "advertise_addr": "broker.example.com:7443"},
//	  "handshake": {"freshness_window": "30s"},
//	  "federation": {"peers": [{"identity": "...", "addr": "10.0.0.2:7443"}]}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToJSON 序列化配置为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFile 从文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// SaveFile 将配置写入文件
//
// 先写临时文件再重命名，避免写入中断留下半个文件。
func (c *Config) SaveFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// CloneConfig 克隆配置
//
// 创建配置的深拷贝，用于安全地修改配置而不影响原始配置。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	if cfg.Federation.Peers != nil {
		cloned.Federation.Peers = append([]PeerBroker(nil), cfg.Federation.Peers...)
	}
	return &cloned
}
