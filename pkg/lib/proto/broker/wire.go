package broker

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidMessage 表示无法解析的 wire 数据
var ErrInvalidMessage = errors.New("invalid broker message")

// ErrUnknownVariant 表示 oneof 字段携带未知变体
var ErrUnknownVariant = errors.New("unknown oneof variant")

// Message 是本包所有消息实现的编解码接口
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// skipField 由字段回调返回，表示该字段未识别，按 wire type 跳过
const skipField = 0

type fieldFunc func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

// walkFields 逐个消费字段，未知字段静默忽略（向前兼容）
func walkFields(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m == skipField {
			m = protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(m))
			}
		}
		data = data[m:]
	}
	return nil
}

// ===== 编码 =====

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// appendMessageField 总是写出字段，即使嵌套消息为空（oneof 需要体现存在性）
func appendMessageField(b []byte, num protowire.Number, m Message) ([]byte, error) {
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, data), nil
}

// ===== 解码 =====

func wireTypeError(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrInvalidMessage, num, typ)
}

func consumeBytes(num protowire.Number, typ protowire.Type, data []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
	}
	return append([]byte(nil), v...), n, nil
}

func consumeString(num protowire.Number, typ protowire.Type, data []byte) (string, int, error) {
	v, n, err := consumeBytes(num, typ, data)
	return string(v), n, err
}

func consumeUint(num protowire.Number, typ protowire.Type, data []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(num, typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBool(num protowire.Number, typ protowire.Type, data []byte) (bool, int, error) {
	v, n, err := consumeUint(num, typ, data)
	return protowire.DecodeBool(v), n, err
}

// consumeMessage 解析一个嵌套消息到 m
func consumeMessage(num protowire.Number, typ protowire.Type, data []byte, m Message) (int, error) {
	raw, n, err := consumeBytes(num, typ, data)
	if err != nil {
		return 0, err
	}
	if err := m.Unmarshal(raw); err != nil {
		return 0, err
	}
	return n, nil
}
