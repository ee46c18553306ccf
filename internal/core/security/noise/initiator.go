package noise

import (
	"crypto/ed25519"
	"fmt"

	"github.com/flynn/noise"

	"github.com/dep2p/go-carrier/internal/core/security"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Initiator 设备一侧的握手状态
type Initiator struct {
	hs      *noise.HandshakeState
	priv    ed25519.PrivateKey
	key     noise.DHKey
	ts      uint64
	stage   int
	remote  types.Identity
	recv    *noise.CipherState
	binding []byte
}

// NewInitiator 创建设备握手状态，timestamp 会签入 payload
func NewInitiator(priv ed25519.PrivateKey, timestamp uint64) (*Initiator, error) {
	key, err := staticKeypair(priv)
	if err != nil {
		return nil, err
	}
	hs, err := newHandshakeState(key, true)
	if err != nil {
		return nil, err
	}
	return &Initiator{hs: hs, priv: priv, key: key, ts: timestamp}, nil
}

// First 返回第一条握手消息（-> e）
func (i *Initiator) First() ([]byte, error) {
	if i.stage != 0 {
		return nil, ErrUnexpectedMessage
	}
	msg, _, _, err := i.hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("write message 1: %w", err)
	}
	i.stage = 1
	return msg, nil
}

// Second 处理 broker 的回复并返回第三条握手消息
func (i *Initiator) Second(msg2 []byte) ([]byte, error) {
	if i.stage != 1 {
		return nil, ErrUnexpectedMessage
	}

	// <- e, ee, s, es, payload
	remotePayload, _, _, err := i.hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, fmt.Errorf("%w: read message 2: %v", ErrInvalidHandshake, err)
	}
	remote, _, err := verifyPayload(remotePayload, i.hs.PeerStatic())
	if err != nil {
		return nil, err
	}

	payload, err := generatePayload(i.priv, i.key.Public, i.ts)
	if err != nil {
		return nil, fmt.Errorf("generate handshake payload: %w", err)
	}

	// -> s, se, payload
	msg3, cs1, cs2, err := i.hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("write message 3: %w", err)
	}
	if cs1 == nil || cs2 == nil {
		return nil, fmt.Errorf("%w: handshake did not finish", ErrInvalidHandshake)
	}

	// 发起者：cs1 发送，cs2 接收
	i.recv = cs2
	i.remote = remote
	i.binding = append([]byte(nil), i.hs.ChannelBinding()...)
	i.stage = 2
	return msg3, nil
}

// Open 解密 broker 用会话密钥加密的数据
func (i *Initiator) Open(sealed []byte) ([]byte, error) {
	if i.stage != 2 {
		return nil, security.ErrHandshakeIncomplete
	}
	plain, err := i.recv.Decrypt(nil, nil, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	return plain, nil
}

// RemoteIdentity 返回 broker 在握手中证明的身份
func (i *Initiator) RemoteIdentity() types.Identity {
	return i.remote
}

// Binding 返回通道绑定值
func (i *Initiator) Binding() []byte {
	return i.binding
}
