package config

import (
	"errors"
	"time"
)

// RoutesConfig 路由表配置
type RoutesConfig struct {
	// Stripes 身份锁分片数（必须是 2 的幂）
	Stripes int `json:"stripes"`

	// ReservationTTL 待定预留的有效期
	// 过期的预留被新的连接尝试直接替换
	ReservationTTL Duration `json:"reservation_ttl"`
}

// DefaultRoutesConfig 返回默认路由表配置
func DefaultRoutesConfig() RoutesConfig {
	return RoutesConfig{
		Stripes:        64,
		ReservationTTL: Duration(10 * time.Second),
	}
}

// Validate 验证路由表配置
func (c RoutesConfig) Validate() error {
	if c.Stripes <= 0 || c.Stripes&(c.Stripes-1) != 0 {
		return errors.New("routes: stripes must be a positive power of two")
	}
	if c.ReservationTTL <= 0 {
		return errors.New("routes: reservation_ttl must be positive")
	}
	return nil
}

// SubscriptionsConfig 订阅配置
type SubscriptionsConfig struct {
	// Stripes 身份过滤器分片数（必须是 2 的幂）
	Stripes int `json:"stripes"`

	// MaxQueue 单个订阅的待投递事件上限
	// 0 表示不限；超过上限时关闭该订阅，而不是静默丢弃事件
	MaxQueue int `json:"max_queue"`
}

// DefaultSubscriptionsConfig 返回默认订阅配置
func DefaultSubscriptionsConfig() SubscriptionsConfig {
	return SubscriptionsConfig{
		Stripes:  64,
		MaxQueue: 0,
	}
}

// Validate 验证订阅配置
func (c SubscriptionsConfig) Validate() error {
	if c.Stripes <= 0 || c.Stripes&(c.Stripes-1) != 0 {
		return errors.New("subscriptions: stripes must be a positive power of two")
	}
	if c.MaxQueue < 0 {
		return errors.New("subscriptions: max_queue cannot be negative")
	}
	return nil
}
