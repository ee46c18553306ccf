package noise

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/security"
)

// Module 返回 fx 模块配置，提供 security.Crypto
func Module() fx.Option {
	return fx.Module("security",
		fx.Provide(ProvideCrypto),
	)
}

// ProvideCrypto 用 broker 身份创建握手协作者
func ProvideCrypto(id *identity.Identity) (security.Crypto, error) {
	return New(id.PrivateKey())
}
