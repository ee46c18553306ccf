package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
)

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - HandleAllocator: 路由句柄分配器
//
// 生命周期:
//   - OnStop: 关闭分配器
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideAllocator),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideAllocator 根据配置创建句柄分配器
func ProvideAllocator(p Params) (HandleAllocator, error) {
	cfg := config.DefaultStorageConfig()
	if p.Config != nil {
		cfg = p.Config.Storage
	}
	return NewAllocator(cfg)
}

// NewAllocator 根据配置创建句柄分配器
//
// 未配置数据目录时使用内存分配器。
func NewAllocator(cfg config.StorageConfig) (HandleAllocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Durable() {
		log.Debug("使用内存句柄分配器")
		return NewMemoryAllocator(), nil
	}
	return OpenBadger(cfg.DBPath(), cfg.HandleBlock, cfg.SyncWrites)
}

func registerLifecycle(lc fx.Lifecycle, alloc HandleAllocator) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := alloc.Close(); err != nil {
				log.Warn("关闭句柄分配器失败", "error", err)
				return err
			}
			return nil
		},
	})
}
