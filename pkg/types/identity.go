package types

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              Identity - 身份
// ============================================================================

// IdentitySize Identity 的字节长度（Ed25519 公钥）
const IdentitySize = ed25519.PublicKeySize

// Identity 设备或 broker 的身份
//
// Identity 是长期 Ed25519 公钥本身，是路由、发布和订阅过滤的唯一键。
// 相等性按字节比较，可直接作为 map 键。
//
// 外部表示格式：
//   - String(): Base58 编码
//   - ShortString(): Base58 前 8 个字符（日志）
type Identity [IdentitySize]byte

// EmptyIdentity 空身份
var EmptyIdentity Identity

var (
	// ErrInvalidIdentity 无效的身份（长度错误）
	ErrInvalidIdentity = errors.New("invalid identity: must be a 32 byte public key")

	// ErrInvalidIdentityString 无效的身份字符串
	ErrInvalidIdentityString = errors.New("invalid identity: must be base58")
)

// IdentityFromBytes 从字节切片创建 Identity
func IdentityFromBytes(b []byte) (Identity, error) {
	if len(b) != IdentitySize {
		return EmptyIdentity, ErrInvalidIdentity
	}
	var id Identity
	copy(id[:], b)
	return id, nil
}

// IdentityFromPublicKey 从 Ed25519 公钥创建 Identity
func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	return IdentityFromBytes(pub)
}

// ParseIdentity 解析 Base58 编码的身份
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return EmptyIdentity, ErrInvalidIdentityString
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyIdentity, ErrInvalidIdentityString
	}
	return IdentityFromBytes(b)
}

// String 返回 Base58 表示
func (id Identity) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回用于日志的短字符串
func (id Identity) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回身份字节的副本
func (id Identity) Bytes() []byte {
	b := make([]byte, IdentitySize)
	copy(b, id[:])
	return b
}

// PublicKey 返回 Ed25519 公钥形式
func (id Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id.Bytes())
}

// IsEmpty 检查是否为空身份
func (id Identity) IsEmpty() bool {
	return id == EmptyIdentity
}

// Equal 比较两个身份
func (id Identity) Equal(other Identity) bool {
	return id == other
}
