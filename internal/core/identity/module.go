package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/util/logger"
)

var log = logger.Logger("identity")

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}

// ProvideIdentity 按配置加载或生成身份
func ProvideIdentity(input ModuleInput) (*Identity, error) {
	cfg := config.DefaultIdentityConfig()
	if input.Config != nil {
		cfg = input.Config.Identity
	}

	id, err := LoadOrGenerate(cfg.KeyFile, cfg.AutoGenerate)
	if err != nil {
		return nil, err
	}
	log.Info("身份就绪", "identity", id.String())
	return id, nil
}
