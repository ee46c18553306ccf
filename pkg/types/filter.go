package types

// ============================================================================
//                              Filter - 订阅过滤器
// ============================================================================

// Filter 订阅过滤器（和类型）
//
// 变体：
//   - ImmediateFilter: 关心全系统的每个 publish/unpublish 事件
//   - IdentityFilter: 只关心某一个身份的发布状态
type Filter interface {
	// Matches 判断事件所属身份是否命中该过滤器
	Matches(id Identity) bool

	isFilter()
}

// ImmediateFilter 匹配所有 publish/unpublish 事件
type ImmediateFilter struct{}

// Matches 总是命中
func (ImmediateFilter) Matches(Identity) bool { return true }

func (ImmediateFilter) isFilter() {}

// IdentityFilter 只匹配指定身份
type IdentityFilter struct {
	Identity Identity
}

// Matches 身份相等时命中
func (f IdentityFilter) Matches(id Identity) bool { return f.Identity == id }

func (IdentityFilter) isFilter() {}
