package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dep2p/go-carrier/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// 环境变量，优先级高于配置文件，低于命令行参数
const (
	envPrefix     = "CARRIER_"
	envKeyFile    = "KEY_FILE"
	envQUICListen = "QUIC_LISTEN"
	envTCPListen  = "TCP_LISTEN"
	envAdvertise  = "ADVERTISE_ADDR"
	envDataDir    = "DATA_DIR"
	envPeers      = "PEERS"
	envMetrics    = "METRICS_ADDR"
	envLogLevel   = "LOG_LEVEL"
	envLogFormat  = "LOG_FORMAT"
)

// loadConfig 加载配置文件，路径为空时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	return config.LoadFile(path)
}

// applyEnvOverrides 应用环境变量覆盖配置
func applyEnvOverrides(cfg *config.Config, getenv func(string) string) error {
	if v := getenv(envPrefix + envKeyFile); v != "" {
		cfg.Identity.KeyFile = v
	}
	if v := getenv(envPrefix + envQUICListen); v != "" {
		cfg.Transport.EnableQUIC = true
		cfg.Transport.QUICListen = v
	}
	if v := getenv(envPrefix + envTCPListen); v != "" {
		cfg.Transport.EnableTCP = true
		cfg.Transport.TCPListen = v
	}
	if v := getenv(envPrefix + envAdvertise); v != "" {
		cfg.Transport.AdvertiseAddr = v
	}
	if v := getenv(envPrefix + envDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv(envPrefix + envMetrics); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = v
	}
	if v := getenv(envPrefix + envPeers); v != "" {
		peers, err := parsePeers(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, envPeers, err)
		}
		cfg.Federation.Peers = peers
	}
	if v := getenv(envPrefix + envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(envPrefix + envLogFormat); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// flagOverrides 命令行覆盖项，空值表示不覆盖
type flagOverrides struct {
	keyFile   string
	quic      string
	tcp       string
	advertise string
	dataDir   string
	metrics   string
	peers     string
	logLevel  string
	logFormat string
}

// apply 把命令行参数写入配置
func (f flagOverrides) apply(cfg *config.Config) error {
	return applyEnvOverrides(cfg, func(name string) string {
		switch strings.TrimPrefix(name, envPrefix) {
		case envKeyFile:
			return f.keyFile
		case envQUICListen:
			return f.quic
		case envTCPListen:
			return f.tcp
		case envAdvertise:
			return f.advertise
		case envDataDir:
			return f.dataDir
		case envMetrics:
			return f.metrics
		case envPeers:
			return f.peers
		case envLogLevel:
			return f.logLevel
		case envLogFormat:
			return f.logFormat
		}
		return ""
	})
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parsePeers 解析 "identity@addr,identity@addr" 形式的对端列表
func parsePeers(s string) ([]config.PeerBroker, error) {
	var peers []config.PeerBroker
	for _, part := range splitAndTrim(s, ",") {
		id, addr, ok := strings.Cut(part, "@")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid peer %q, want identity@addr", part)
		}
		peers = append(peers, config.PeerBroker{Identity: id, Addr: addr})
	}
	return peers, nil
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// writeDefaultConfig 把默认配置写到 path
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.NewConfig().SaveFile(path)
}
