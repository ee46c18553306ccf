// Package noise 包含 Noise 握手 payload 的 protobuf 定义
//
// payload 把握手的静态密钥绑定到设备的长期身份，并携带连接请求的时间戳。
package noise

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidPayload 表示无效的 payload 数据
var ErrInvalidPayload = errors.New("invalid noise payload data")

// HandshakePayload 是 Noise 握手的 payload 结构
//
// 字段：
//   - IdentityKey: Ed25519 身份公钥（原始 32 字节）
//   - IdentitySig: 对 "carrier-noise-static-key:" + Curve25519 静态公钥 的签名
//   - Timestamp: 连接请求中的时间戳（Unix 秒），防止握手被挪用
type HandshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
	Timestamp   uint64
}

// Marshal 序列化 HandshakePayload
//
// 使用 protobuf wire format 编码：
//   - Field 1 (identity_key): length-delimited
//   - Field 2 (identity_sig): length-delimited
//   - Field 3 (timestamp): varint
func (p *HandshakePayload) Marshal() ([]byte, error) {
	result := make([]byte, 0, len(p.IdentityKey)+len(p.IdentitySig)+16)

	if len(p.IdentityKey) > 0 {
		result = protowire.AppendTag(result, 1, protowire.BytesType)
		result = protowire.AppendBytes(result, p.IdentityKey)
	}
	if len(p.IdentitySig) > 0 {
		result = protowire.AppendTag(result, 2, protowire.BytesType)
		result = protowire.AppendBytes(result, p.IdentitySig)
	}
	if p.Timestamp != 0 {
		result = protowire.AppendTag(result, 3, protowire.VarintType)
		result = protowire.AppendVarint(result, p.Timestamp)
	}

	return result, nil
}

// Unmarshal 反序列化 HandshakePayload
func (p *HandshakePayload) Unmarshal(data []byte) error {
	*p = HandshakePayload{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return ErrInvalidPayload
			}
			p.IdentityKey = append([]byte(nil), v...)
			n = m
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return ErrInvalidPayload
			}
			p.IdentitySig = append([]byte(nil), v...)
			n = m
		case num == 3 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return ErrInvalidPayload
			}
			p.Timestamp = v
			n = m
		case num <= 3:
			// 已知字段但 wire type 不符
			return ErrInvalidPayload
		default:
			// 其他字段静默忽略（向前兼容）
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ErrInvalidPayload
			}
		}
		data = data[n:]
	}

	return nil
}
