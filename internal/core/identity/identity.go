package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/dep2p/go-carrier/pkg/types"
)

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 长期密钥对
type Identity struct {
	priv ed25519.PrivateKey
	id   types.Identity
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey 从 Ed25519 私钥创建身份
//
// 接受 64 字节私钥或 32 字节种子。
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	switch len(priv) {
	case ed25519.PrivateKeySize:
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(priv)
	default:
		return nil, ErrInvalidKeySize
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrUnsupportedKeyType
	}
	id, err := types.IdentityFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, id: id}, nil
}

// ID 返回公钥身份
func (i *Identity) ID() types.Identity {
	return i.id
}

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.id.PublicKey()
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.priv, data)
}

// String 返回 Base58 身份
func (i *Identity) String() string {
	return i.id.String()
}
