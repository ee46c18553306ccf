// Package broker 包含 carrier broker 协议的 protobuf 消息
//
// 消息定义见 broker.proto，编解码按 protobuf wire format 手写实现。
package broker

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
//                              ProtoHeader
// ============================================================================

// ProtoHeader 位于每条消息之前，携带紧随其后的消息长度
type ProtoHeader struct {
	Len uint64
}

// Marshal 序列化 ProtoHeader
func (h *ProtoHeader) Marshal() ([]byte, error) {
	return appendUintField(nil, 1, h.Len), nil
}

// Unmarshal 反序列化 ProtoHeader
func (h *ProtoHeader) Unmarshal(data []byte) error {
	*h = ProtoHeader{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		if num == 1 {
			h.Len, n, err = consumeUint(num, typ, b)
			return n, err
		}
		return skipField, nil
	})
}

// ============================================================================
//                              Path
// ============================================================================

// Path_Category 路径类别
type Path_Category int32

const (
	Path_Invalid      Path_Category = 0
	Path_Local        Path_Category = 1
	Path_Internet     Path_Category = 2
	Path_BrokerOrigin Path_Category = 3
)

// Path 一条候选网络路径
type Path struct {
	Ipaddr   string
	Category Path_Category
}

// Marshal 序列化 Path
func (p *Path) Marshal() ([]byte, error) {
	b := appendStringField(nil, 1, p.Ipaddr)
	b = appendUintField(b, 2, uint64(p.Category))
	return b, nil
}

// Unmarshal 反序列化 Path
func (p *Path) Unmarshal(data []byte) error {
	*p = Path{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			p.Ipaddr, n, err = consumeString(num, typ, b)
		case 2:
			var v uint64
			v, n, err = consumeUint(num, typ, b)
			p.Category = Path_Category(int32(v))
		default:
			return skipField, nil
		}
		return n, err
	})
}

func appendPaths(b []byte, num protowire.Number, paths []*Path) ([]byte, error) {
	var err error
	for _, p := range paths {
		if p == nil {
			continue
		}
		if b, err = appendMessageField(b, num, p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func consumePath(num protowire.Number, typ protowire.Type, b []byte, paths *[]*Path) (int, error) {
	p := &Path{}
	n, err := consumeMessage(num, typ, b, p)
	if err != nil {
		return 0, err
	}
	*paths = append(*paths, p)
	return n, nil
}

// ============================================================================
//                              Filter
// ============================================================================

// Filter 订阅过滤器，M 为 *Filter_Immediate 或 *Filter_Identity
type Filter struct {
	M isFilter_M
}

type isFilter_M interface {
	isFilter_M()
}

// Filter_Immediate 匹配所有发布活动
type Filter_Immediate struct {
	Immediate bool
}

// Filter_Identity 匹配单个身份
type Filter_Identity struct {
	Identity []byte
}

func (*Filter_Immediate) isFilter_M() {}
func (*Filter_Identity) isFilter_M()  {}

// Marshal 序列化 Filter
func (f *Filter) Marshal() ([]byte, error) {
	var b []byte
	switch m := f.M.(type) {
	case nil:
	case *Filter_Immediate:
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(m.Immediate))
	case *Filter_Identity:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Identity)
	default:
		return nil, fmt.Errorf("%w: filter %T", ErrUnknownVariant, m)
	}
	return b, nil
}

// Unmarshal 反序列化 Filter
func (f *Filter) Unmarshal(data []byte) error {
	*f = Filter{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBool(num, typ, b)
			if err != nil {
				return 0, err
			}
			f.M = &Filter_Immediate{Immediate: v}
			return n, nil
		case 2:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			f.M = &Filter_Identity{Identity: v}
			return n, nil
		}
		return skipField, nil
	})
}

// ============================================================================
//                              Subscribe
// ============================================================================

// SubscribeRequest 订阅请求
type SubscribeRequest struct {
	Shadow []byte
	Filter []*Filter
}

// Marshal 序列化 SubscribeRequest
func (r *SubscribeRequest) Marshal() ([]byte, error) {
	b := appendBytesField(nil, 1, r.Shadow)
	var err error
	for _, f := range r.Filter {
		if f == nil {
			continue
		}
		if b, err = appendMessageField(b, 2, f); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Unmarshal 反序列化 SubscribeRequest
func (r *SubscribeRequest) Unmarshal(data []byte) error {
	*r = SubscribeRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Shadow, n, err = consumeBytes(num, typ, b)
			return n, err
		case 2:
			f := &Filter{}
			if n, err = consumeMessage(num, typ, b, f); err != nil {
				return 0, err
			}
			r.Filter = append(r.Filter, f)
			return n, nil
		}
		return skipField, nil
	})
}

// Publish 身份上线事件
type Publish struct {
	Identity []byte
	Xaddr    []byte
}

// Marshal 序列化 Publish
func (p *Publish) Marshal() ([]byte, error) {
	b := appendBytesField(nil, 1, p.Identity)
	return appendBytesField(b, 2, p.Xaddr), nil
}

// Unmarshal 反序列化 Publish
func (p *Publish) Unmarshal(data []byte) error {
	*p = Publish{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			p.Identity, n, err = consumeBytes(num, typ, b)
		case 2:
			p.Xaddr, n, err = consumeBytes(num, typ, b)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// Unpublish 身份下线事件
type Unpublish struct {
	Identity []byte
}

// Marshal 序列化 Unpublish
func (u *Unpublish) Marshal() ([]byte, error) {
	return appendBytesField(nil, 1, u.Identity), nil
}

// Unmarshal 反序列化 Unpublish
func (u *Unpublish) Unmarshal(data []byte) error {
	*u = Unpublish{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		if num == 1 {
			u.Identity, n, err = consumeBytes(num, typ, b)
			return n, err
		}
		return skipField, nil
	})
}

// Supersede 表示流已被同源的新流取代
type Supersede struct{}

// Marshal 序列化 Supersede
func (*Supersede) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal 反序列化 Supersede
func (*Supersede) Unmarshal(data []byte) error {
	return walkFields(data, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return skipField, nil
	})
}

// SubscribeChange 订阅流上的一条变更
type SubscribeChange struct {
	M isSubscribeChange_M
}

type isSubscribeChange_M interface {
	isSubscribeChange_M()
}

type SubscribeChange_Publish struct {
	Publish *Publish
}

type SubscribeChange_Unpublish struct {
	Unpublish *Unpublish
}

type SubscribeChange_Supersede struct {
	Supersede *Supersede
}

func (*SubscribeChange_Publish) isSubscribeChange_M()   {}
func (*SubscribeChange_Unpublish) isSubscribeChange_M() {}
func (*SubscribeChange_Supersede) isSubscribeChange_M() {}

// Marshal 序列化 SubscribeChange
func (c *SubscribeChange) Marshal() ([]byte, error) {
	switch m := c.M.(type) {
	case nil:
		return nil, nil
	case *SubscribeChange_Publish:
		return appendMessageField(nil, 1, orEmpty(m.Publish))
	case *SubscribeChange_Unpublish:
		return appendMessageField(nil, 2, orEmpty(m.Unpublish))
	case *SubscribeChange_Supersede:
		return appendMessageField(nil, 3, &Supersede{})
	default:
		return nil, fmt.Errorf("%w: subscribe change %T", ErrUnknownVariant, m)
	}
}

// Unmarshal 反序列化 SubscribeChange
func (c *SubscribeChange) Unmarshal(data []byte) error {
	*c = SubscribeChange{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v := &Publish{}
			n, err := consumeMessage(num, typ, b, v)
			c.M = &SubscribeChange_Publish{Publish: v}
			return n, err
		case 2:
			v := &Unpublish{}
			n, err := consumeMessage(num, typ, b, v)
			c.M = &SubscribeChange_Unpublish{Unpublish: v}
			return n, err
		case 3:
			v := &Supersede{}
			n, err := consumeMessage(num, typ, b, v)
			c.M = &SubscribeChange_Supersede{Supersede: v}
			return n, err
		}
		return skipField, nil
	})
}

// ============================================================================
//                              Publish
// ============================================================================

// PublishRequest 发布请求
type PublishRequest struct {
	Xaddr  []byte
	Shadow []byte
}

// Marshal 序列化 PublishRequest
func (r *PublishRequest) Marshal() ([]byte, error) {
	b := appendBytesField(nil, 1, r.Xaddr)
	return appendBytesField(b, 2, r.Shadow), nil
}

// Unmarshal 反序列化 PublishRequest
func (r *PublishRequest) Unmarshal(data []byte) error {
	*r = PublishRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Xaddr, n, err = consumeBytes(num, typ, b)
		case 2:
			r.Shadow, n, err = consumeBytes(num, typ, b)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// PublishChange 发布流上的一条变更
type PublishChange struct {
	M isPublishChange_M
}

type isPublishChange_M interface {
	isPublishChange_M()
}

type PublishChange_Supersede struct {
	Supersede *Supersede
}

func (*PublishChange_Supersede) isPublishChange_M() {}

// Marshal 序列化 PublishChange
func (c *PublishChange) Marshal() ([]byte, error) {
	switch m := c.M.(type) {
	case nil:
		return nil, nil
	case *PublishChange_Supersede:
		return appendMessageField(nil, 1, &Supersede{})
	default:
		return nil, fmt.Errorf("%w: publish change %T", ErrUnknownVariant, m)
	}
}

// Unmarshal 反序列化 PublishChange
func (c *PublishChange) Unmarshal(data []byte) error {
	*c = PublishChange{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			v := &Supersede{}
			n, err := consumeMessage(num, typ, b, v)
			c.M = &PublishChange_Supersede{Supersede: v}
			return n, err
		}
		return skipField, nil
	})
}

// ============================================================================
//                              Connect
// ============================================================================

// ConnectRequest 设备连接请求，同一流上可多次发送以推进握手
type ConnectRequest struct {
	Identity  []byte
	Timestamp uint64
	Handshake []byte
	Paths     []*Path
	Xaddr     []byte
	Shadow    []byte
}

// Marshal 序列化 ConnectRequest
func (r *ConnectRequest) Marshal() ([]byte, error) {
	b := appendBytesField(nil, 1, r.Identity)
	b = appendUintField(b, 2, r.Timestamp)
	b = appendBytesField(b, 3, r.Handshake)
	b, err := appendPaths(b, 4, r.Paths)
	if err != nil {
		return nil, err
	}
	b = appendBytesField(b, 5, r.Xaddr)
	return appendBytesField(b, 6, r.Shadow), nil
}

// Unmarshal 反序列化 ConnectRequest
func (r *ConnectRequest) Unmarshal(data []byte) error {
	*r = ConnectRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Identity, n, err = consumeBytes(num, typ, b)
		case 2:
			r.Timestamp, n, err = consumeUint(num, typ, b)
		case 3:
			r.Handshake, n, err = consumeBytes(num, typ, b)
		case 4:
			n, err = consumePath(num, typ, b, &r.Paths)
		case 5:
			r.Xaddr, n, err = consumeBytes(num, typ, b)
		case 6:
			r.Shadow, n, err = consumeBytes(num, typ, b)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// ConnectResponse 连接响应
type ConnectResponse struct {
	Ok        bool
	Handshake []byte
	Route     uint64
	Paths     []*Path
	Supersede bool
}

// Marshal 序列化 ConnectResponse
func (r *ConnectResponse) Marshal() ([]byte, error) {
	b := appendBoolField(nil, 1, r.Ok)
	b = appendBytesField(b, 2, r.Handshake)
	b = appendUintField(b, 3, r.Route)
	b, err := appendPaths(b, 4, r.Paths)
	if err != nil {
		return nil, err
	}
	return appendBoolField(b, 5, r.Supersede), nil
}

// Unmarshal 反序列化 ConnectResponse
func (r *ConnectResponse) Unmarshal(data []byte) error {
	*r = ConnectResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Ok, n, err = consumeBool(num, typ, b)
		case 2:
			r.Handshake, n, err = consumeBytes(num, typ, b)
		case 3:
			r.Route, n, err = consumeUint(num, typ, b)
		case 4:
			n, err = consumePath(num, typ, b, &r.Paths)
		case 5:
			r.Supersede, n, err = consumeBool(num, typ, b)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// ============================================================================
//                              Peer
// ============================================================================

// PeerConnectRequest broker 之间传播的路由公告
type PeerConnectRequest struct {
	Identity  []byte
	Timestamp uint64
	Handshake []byte
	Route     uint64
	Paths     []*Path
	Withdraw  bool
	Xaddr     []byte
	Shadow    []byte
}

// Marshal 序列化 PeerConnectRequest
func (r *PeerConnectRequest) Marshal() ([]byte, error) {
	b := appendBytesField(nil, 1, r.Identity)
	b = appendUintField(b, 2, r.Timestamp)
	b = appendBytesField(b, 3, r.Handshake)
	b = appendUintField(b, 4, r.Route)
	b, err := appendPaths(b, 5, r.Paths)
	if err != nil {
		return nil, err
	}
	b = appendBoolField(b, 6, r.Withdraw)
	b = appendBytesField(b, 7, r.Xaddr)
	return appendBytesField(b, 8, r.Shadow), nil
}

// Unmarshal 反序列化 PeerConnectRequest
func (r *PeerConnectRequest) Unmarshal(data []byte) error {
	*r = PeerConnectRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Identity, n, err = consumeBytes(num, typ, b)
		case 2:
			r.Timestamp, n, err = consumeUint(num, typ, b)
		case 3:
			r.Handshake, n, err = consumeBytes(num, typ, b)
		case 4:
			r.Route, n, err = consumeUint(num, typ, b)
		case 5:
			n, err = consumePath(num, typ, b, &r.Paths)
		case 6:
			r.Withdraw, n, err = consumeBool(num, typ, b)
		case 7:
			r.Xaddr, n, err = consumeBytes(num, typ, b)
		case 8:
			r.Shadow, n, err = consumeBytes(num, typ, b)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// PeerConnectResponse 路由公告的应答
type PeerConnectResponse struct {
	Ok        bool
	Handshake []byte
	Paths     []*Path
}

// Marshal 序列化 PeerConnectResponse
func (r *PeerConnectResponse) Marshal() ([]byte, error) {
	b := appendBoolField(nil, 1, r.Ok)
	b = appendBytesField(b, 2, r.Handshake)
	return appendPaths(b, 3, r.Paths)
}

// Unmarshal 反序列化 PeerConnectResponse
func (r *PeerConnectResponse) Unmarshal(data []byte) error {
	*r = PeerConnectResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Ok, n, err = consumeBool(num, typ, b)
		case 2:
			r.Handshake, n, err = consumeBytes(num, typ, b)
		case 3:
			n, err = consumePath(num, typ, b, &r.Paths)
		default:
			return skipField, nil
		}
		return n, err
	})
}

// ============================================================================
//                              Resolve
// ============================================================================

// ResolveRequest 查询身份的当前路由
type ResolveRequest struct {
	Identity []byte
}

// Marshal 序列化 ResolveRequest
func (r *ResolveRequest) Marshal() ([]byte, error) {
	return appendBytesField(nil, 1, r.Identity), nil
}

// Unmarshal 反序列化 ResolveRequest
func (r *ResolveRequest) Unmarshal(data []byte) error {
	*r = ResolveRequest{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		if num == 1 {
			r.Identity, n, err = consumeBytes(num, typ, b)
			return n, err
		}
		return skipField, nil
	})
}

// ResolveResponse 路由查询结果
type ResolveResponse struct {
	Ok    bool
	Route uint64
	Paths []*Path
}

// Marshal 序列化 ResolveResponse
func (r *ResolveResponse) Marshal() ([]byte, error) {
	b := appendBoolField(nil, 1, r.Ok)
	b = appendUintField(b, 2, r.Route)
	return appendPaths(b, 3, r.Paths)
}

// Unmarshal 反序列化 ResolveResponse
func (r *ResolveResponse) Unmarshal(data []byte) error {
	*r = ResolveResponse{}
	return walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (n int, err error) {
		switch num {
		case 1:
			r.Ok, n, err = consumeBool(num, typ, b)
		case 2:
			r.Route, n, err = consumeUint(num, typ, b)
		case 3:
			n, err = consumePath(num, typ, b, &r.Paths)
		default:
			return skipField, nil
		}
		return n, err
	})
}

func orEmpty[T any, P interface {
	*T
	Message
}](m P) P {
	if m == nil {
		return P(new(T))
	}
	return m
}
