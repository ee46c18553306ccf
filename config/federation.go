package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-carrier/pkg/types"
)

// PeerBroker 联邦 broker 配置
type PeerBroker struct {
	// Identity 对端 broker 的身份（Base58）
	Identity string `json:"identity"`

	// Addr 对端 broker 的 QUIC 地址
	Addr string `json:"addr"`
}

// FederationConfig 联邦配置
//
// 路由变更以尽力而为的方式传播给每个已配置的对端 broker，
// 失败按指数退避重试，不影响本地状态。
type FederationConfig struct {
	// Peers 对端 broker 列表
	Peers []PeerBroker `json:"peers,omitempty"`

	// InitialBackoff 首次重试间隔
	InitialBackoff Duration `json:"initial_backoff"`

	// MaxBackoff 重试间隔上限
	MaxBackoff Duration `json:"max_backoff"`

	// MaxElapsed 单条公告的最长重试时间，0 表示一直重试直到被更新的公告替换
	MaxElapsed Duration `json:"max_elapsed"`

	// RequestTimeout 单次公告 RPC 超时
	RequestTimeout Duration `json:"request_timeout"`

	// DedupCacheSize 已处理公告的去重缓存大小
	DedupCacheSize int `json:"dedup_cache_size"`
}

// DefaultFederationConfig 返回默认联邦配置
func DefaultFederationConfig() FederationConfig {
	return FederationConfig{
		InitialBackoff: Duration(200 * time.Millisecond),
		MaxBackoff:     Duration(30 * time.Second),
		MaxElapsed:     0,
		RequestTimeout: Duration(5 * time.Second),
		DedupCacheSize: 4096,
	}
}

// Validate 验证联邦配置
func (c FederationConfig) Validate() error {
	for i, p := range c.Peers {
		if _, err := types.ParseIdentity(p.Identity); err != nil {
			return fmt.Errorf("federation: peers[%d]: %w", i, err)
		}
		if p.Addr == "" {
			return fmt.Errorf("federation: peers[%d]: addr cannot be empty", i)
		}
	}
	if c.InitialBackoff <= 0 {
		return errors.New("federation: initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return errors.New("federation: max_backoff must not be less than initial_backoff")
	}
	if c.MaxElapsed < 0 {
		return errors.New("federation: max_elapsed cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("federation: request_timeout must be positive")
	}
	if c.DedupCacheSize <= 0 {
		return errors.New("federation: dedup_cache_size must be positive")
	}
	return nil
}

// PeerIdentities 返回已配置对端的身份集合
//
// 调用前应先通过 Validate。
func (c FederationConfig) PeerIdentities() map[types.Identity]string {
	out := make(map[types.Identity]string, len(c.Peers))
	for _, p := range c.Peers {
		id, err := types.ParseIdentity(p.Identity)
		if err != nil {
			continue
		}
		out[id] = p.Addr
	}
	return out
}
