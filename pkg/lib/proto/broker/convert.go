package broker

import (
	"fmt"

	"github.com/dep2p/go-carrier/pkg/types"
)

// PathsToTypes 把 wire 路径转换为内部路径
func PathsToTypes(paths []*Path) []types.Path {
	out := make([]types.Path, 0, len(paths))
	for _, p := range paths {
		if p == nil {
			continue
		}
		out = append(out, types.Path{
			Address:  p.Ipaddr,
			Category: types.PathCategory(p.Category),
		})
	}
	return out
}

// PathsFromTypes 把内部路径转换为 wire 路径
func PathsFromTypes(paths []types.Path) []*Path {
	out := make([]*Path, 0, len(paths))
	for _, p := range paths {
		out = append(out, &Path{
			Ipaddr:   p.Address,
			Category: Path_Category(p.Category),
		})
	}
	return out
}

// FilterToTypes 把 wire 过滤器转换为内部过滤器
func FilterToTypes(f *Filter) (types.Filter, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: empty filter", ErrInvalidMessage)
	}
	switch m := f.M.(type) {
	case *Filter_Immediate:
		return types.ImmediateFilter{}, nil
	case *Filter_Identity:
		id, err := types.IdentityFromBytes(m.Identity)
		if err != nil {
			return nil, err
		}
		return types.IdentityFilter{Identity: id}, nil
	case nil:
		return nil, fmt.Errorf("%w: empty filter", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: filter %T", ErrUnknownVariant, m)
	}
}

// FilterFromTypes 把内部过滤器转换为 wire 过滤器
func FilterFromTypes(f types.Filter) (*Filter, error) {
	switch v := f.(type) {
	case types.ImmediateFilter:
		return &Filter{M: &Filter_Immediate{Immediate: true}}, nil
	case types.IdentityFilter:
		return &Filter{M: &Filter_Identity{Identity: v.Identity.Bytes()}}, nil
	default:
		return nil, fmt.Errorf("%w: filter %T", ErrUnknownVariant, f)
	}
}

// ChangeFromEvent 把内部变更事件转换为订阅流消息
func ChangeFromEvent(ev types.ChangeEvent) (*SubscribeChange, error) {
	switch e := ev.(type) {
	case types.PublishEvent:
		return &SubscribeChange{M: &SubscribeChange_Publish{Publish: &Publish{
			Identity: e.Identity.Bytes(),
			Xaddr:    append([]byte(nil), e.XAddr...),
		}}}, nil
	case types.UnpublishEvent:
		return &SubscribeChange{M: &SubscribeChange_Unpublish{Unpublish: &Unpublish{
			Identity: e.Identity.Bytes(),
		}}}, nil
	case types.SupersedeEvent:
		return &SubscribeChange{M: &SubscribeChange_Supersede{Supersede: &Supersede{}}}, nil
	default:
		return nil, fmt.Errorf("%w: event %T", ErrUnknownVariant, ev)
	}
}

// ChangeToEvent 把订阅流消息转换为内部变更事件
func ChangeToEvent(c *SubscribeChange) (types.ChangeEvent, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: empty change", ErrInvalidMessage)
	}
	switch m := c.M.(type) {
	case *SubscribeChange_Publish:
		id, err := types.IdentityFromBytes(orEmpty(m.Publish).Identity)
		if err != nil {
			return nil, err
		}
		return types.PublishEvent{Identity: id, XAddr: orEmpty(m.Publish).Xaddr}, nil
	case *SubscribeChange_Unpublish:
		id, err := types.IdentityFromBytes(orEmpty(m.Unpublish).Identity)
		if err != nil {
			return nil, err
		}
		return types.UnpublishEvent{Identity: id}, nil
	case *SubscribeChange_Supersede:
		return types.SupersedeEvent{}, nil
	case nil:
		return nil, fmt.Errorf("%w: empty change", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: change %T", ErrUnknownVariant, m)
	}
}
