package app

import (
	"time"

	"go.uber.org/fx"
)

// BootstrapOption Bootstrap 配置选项
type BootstrapOption func(*Bootstrap)

// WithStartTimeout 设置启动超时
func WithStartTimeout(d time.Duration) BootstrapOption {
	return func(b *Bootstrap) {
		b.startTimeout = d
	}
}

// WithStopTimeout 设置停止超时
func WithStopTimeout(d time.Duration) BootstrapOption {
	return func(b *Bootstrap) {
		b.stopTimeout = d
	}
}

// WithModules 追加额外的 fx 选项，用于测试替换协作者
func WithModules(opts ...fx.Option) BootstrapOption {
	return func(b *Bootstrap) {
		b.extra = append(b.extra, opts...)
	}
}
