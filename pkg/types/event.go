package types

// ============================================================================
//                              ChangeEvent - 变更事件
// ============================================================================

// ChangeEvent 推送给订阅者或发布者的变更事件（和类型）
//
// 变体：
//   - PublishEvent: 某身份发布了新的可达性描述
//   - UnpublishEvent: 某身份撤销了发布
//   - SupersedeEvent: 接收方自己先前的注册/订阅已被同源的更新者取代
type ChangeEvent interface {
	isChangeEvent()
}

// PublishEvent 发布事件
type PublishEvent struct {
	Identity Identity
	XAddr    []byte
}

func (PublishEvent) isChangeEvent() {}

// UnpublishEvent 撤销发布事件
type UnpublishEvent struct {
	Identity Identity
}

func (UnpublishEvent) isChangeEvent() {}

// SupersedeEvent 取代事件
//
// 不是错误：只是通知接收方它已被更新的注册替换，应当干净地断开。
type SupersedeEvent struct{}

func (SupersedeEvent) isChangeEvent() {}

// EventIdentity 返回事件所属的身份
//
// SupersedeEvent 没有身份，ok 为 false。
func EventIdentity(ev ChangeEvent) (id Identity, ok bool) {
	switch e := ev.(type) {
	case PublishEvent:
		return e.Identity, true
	case UnpublishEvent:
		return e.Identity, true
	case SupersedeEvent:
		return EmptyIdentity, false
	default:
		return EmptyIdentity, false
	}
}
