package noise

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"

	"github.com/dep2p/go-carrier/internal/core/security"
	noisepb "github.com/dep2p/go-carrier/pkg/lib/proto/noise"
	"github.com/dep2p/go-carrier/pkg/types"
)

// payloadSigPrefix 是签名 payload 的前缀
const payloadSigPrefix = "carrier-noise-static-key:"

// cipherSuite Noise_XX_25519_ChaChaPoly_SHA256
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// ============================================================================
// 握手状态
// ============================================================================

// staticKeypair 从 Ed25519 私钥派生 Noise 静态密钥对
//
// 派生出的私钥必须与转换得到的公钥一致，否则密钥无效。
func staticKeypair(priv ed25519.PrivateKey) (noise.DHKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return noise.DHKey{}, ErrInvalidKey
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return noise.DHKey{}, ErrInvalidKey
	}

	curvePriv := ed25519ToCurve25519Private(priv)
	curvePub := ed25519ToCurve25519Public(pub)

	derived, err := curve25519.X25519(curvePriv, curve25519.Basepoint)
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !bytes.Equal(derived, curvePub) {
		return noise.DHKey{}, ErrInvalidKey
	}
	return noise.DHKey{Private: curvePriv, Public: curvePub}, nil
}

// newHandshakeState 创建 XX 握手状态
func newHandshakeState(key noise.DHKey, initiator bool) (*noise.HandshakeState, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: key,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}
	return hs, nil
}

// ============================================================================
// payload
// ============================================================================

// generatePayload 生成本地握手 payload
func generatePayload(priv ed25519.PrivateKey, curvePub []byte, timestamp uint64) ([]byte, error) {
	toSign := append([]byte(payloadSigPrefix), curvePub...)
	payload := &noisepb.HandshakePayload{
		IdentityKey: []byte(priv.Public().(ed25519.PublicKey)),
		IdentitySig: ed25519.Sign(priv, toSign),
		Timestamp:   timestamp,
	}
	return payload.Marshal()
}

// verifyPayload 验证远程 payload 并返回其身份与时间戳
//
// 签名把对端的 Noise 静态公钥绑定到它的长期身份。
func verifyPayload(data []byte, remoteStatic []byte) (types.Identity, uint64, error) {
	if len(remoteStatic) != 32 {
		return types.EmptyIdentity, 0, fmt.Errorf("%w: remote static key length %d", ErrInvalidHandshake, len(remoteStatic))
	}

	var payload noisepb.HandshakePayload
	if err := payload.Unmarshal(data); err != nil {
		return types.EmptyIdentity, 0, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}

	id, err := types.IdentityFromBytes(payload.IdentityKey)
	if err != nil {
		return types.EmptyIdentity, 0, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}

	toVerify := append([]byte(payloadSigPrefix), remoteStatic...)
	if !ed25519.Verify(id.PublicKey(), toVerify, payload.IdentitySig) {
		return types.EmptyIdentity, 0, security.ErrInvalidSignature
	}
	return id, payload.Timestamp, nil
}

// ============================================================================
// 密钥转换
// ============================================================================

// ed25519ToCurve25519Private 将 Ed25519 私钥转换为 Curve25519 私钥
//
// 对私钥种子进行 SHA-512 哈希，取前 32 字节并 clamping（RFC 7748）。
func ed25519ToCurve25519Private(edPriv []byte) []byte {
	var seed []byte

	switch len(edPriv) {
	case ed25519.PrivateKeySize:
		seed = edPriv[:32]
	case 32:
		seed = edPriv
	default:
		return make([]byte, 32)
	}

	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	return h[:32]
}

// ed25519ToCurve25519Public 将 Ed25519 公钥转换为 Curve25519 公钥
//
// 使用 Edwards -> Montgomery 转换公式：
//
//	u = (1 + y) / (1 - y)  (mod p)
func ed25519ToCurve25519Public(edPub []byte) []byte {
	if len(edPub) != ed25519.PublicKeySize {
		return make([]byte, 32)
	}

	point, err := new(edwards25519.Point).SetBytes(edPub)
	if err != nil {
		return make([]byte, 32)
	}
	return point.BytesMontgomery()
}
