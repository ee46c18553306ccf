package noise

import (
	"crypto/ed25519"
	"fmt"

	"github.com/flynn/noise"

	"github.com/dep2p/go-carrier/internal/core/security"
)

// ============================================================================
// Crypto
// ============================================================================

// Crypto 基于 Noise XX 的握手协作者
type Crypto struct {
	priv    ed25519.PrivateKey
	key     noise.DHKey
	payload []byte
}

var _ security.Crypto = (*Crypto)(nil)

// New 用 broker 长期私钥创建握手协作者
func New(priv ed25519.PrivateKey) (*Crypto, error) {
	key, err := staticKeypair(priv)
	if err != nil {
		return nil, err
	}
	payload, err := generatePayload(priv, key.Public, 0)
	if err != nil {
		return nil, fmt.Errorf("generate handshake payload: %w", err)
	}
	return &Crypto{priv: priv, key: key, payload: payload}, nil
}

// NewResponder 实现 security.Crypto
func (c *Crypto) NewResponder() (security.Responder, error) {
	hs, err := newHandshakeState(c.key, false)
	if err != nil {
		return nil, err
	}
	return &Responder{hs: hs, payload: c.payload}, nil
}

// ============================================================================
// Responder
// ============================================================================

// responder 握手阶段
const (
	awaitEphemeral = iota
	awaitStatic
	complete
)

// Responder broker 一侧的握手状态
type Responder struct {
	hs      *noise.HandshakeState
	payload []byte
	stage   int

	send   *noise.CipherState
	result security.Result
}

var _ security.Responder = (*Responder)(nil)

// Step 实现 security.Responder
func (r *Responder) Step(msg []byte) ([]byte, bool, error) {
	switch r.stage {
	case awaitEphemeral:
		// <- e
		if _, _, _, err := r.hs.ReadMessage(nil, msg); err != nil {
			return nil, false, fmt.Errorf("%w: read message 1: %v", ErrInvalidHandshake, err)
		}
		// -> e, ee, s, es, payload
		reply, _, _, err := r.hs.WriteMessage(nil, r.payload)
		if err != nil {
			return nil, false, fmt.Errorf("write message 2: %w", err)
		}
		r.stage = awaitStatic
		return reply, false, nil

	case awaitStatic:
		// <- s, se, payload
		remotePayload, cs1, cs2, err := r.hs.ReadMessage(nil, msg)
		if err != nil {
			return nil, false, fmt.Errorf("%w: read message 3: %v", ErrInvalidHandshake, err)
		}
		if cs1 == nil || cs2 == nil {
			return nil, false, fmt.Errorf("%w: handshake did not finish", ErrInvalidHandshake)
		}

		id, ts, err := verifyPayload(remotePayload, r.hs.PeerStatic())
		if err != nil {
			return nil, false, err
		}

		// 响应者：cs1 接收，cs2 发送
		r.send = cs2
		r.result = security.Result{
			Identity:  id,
			Timestamp: ts,
			Binding:   append([]byte(nil), r.hs.ChannelBinding()...),
		}
		r.stage = complete
		return nil, true, nil

	default:
		return nil, false, security.ErrHandshakeComplete
	}
}

// Result 实现 security.Responder
func (r *Responder) Result() (security.Result, error) {
	if r.stage != complete {
		return security.Result{}, security.ErrHandshakeIncomplete
	}
	return r.result, nil
}

// Seal 实现 security.Responder
func (r *Responder) Seal(plaintext []byte) ([]byte, error) {
	if r.stage != complete {
		return nil, security.ErrHandshakeIncomplete
	}
	return r.send.Encrypt(nil, nil, plaintext)
}
