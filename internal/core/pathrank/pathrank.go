// Package pathrank 对候选网络路径排序
//
// 排序规则：Local 优先，其次 BrokerOrigin，最后 Internet；
// Invalid 路径被丢弃；同一类别内保持输入顺序。
package pathrank

import (
	"sort"

	"github.com/dep2p/go-carrier/pkg/types"
)

// rank 返回类别的优先级，数值越小越优先；-1 表示丢弃
func rank(c types.PathCategory) int {
	switch c {
	case types.PathLocal:
		return 0
	case types.PathBrokerOrigin:
		return 1
	case types.PathInternet:
		return 2
	default:
		return -1
	}
}

// Better 判断类别 a 是否优于 b
func Better(a, b types.PathCategory) bool {
	ra, rb := rank(a), rank(b)
	if ra < 0 {
		return false
	}
	return rb < 0 || ra < rb
}

// Rank 返回排序后的路径副本
func Rank(paths []types.Path) []types.Path {
	out := make([]types.Path, 0, len(paths))
	for _, p := range paths {
		if rank(p.Category) >= 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Category) < rank(out[j].Category)
	})
	return out
}

// Merge 合并多组路径并排序
//
// 同一地址出现多次时保留最优类别，首次出现的位置决定同类别内的顺序。
func Merge(groups ...[]types.Path) []types.Path {
	index := make(map[string]int)
	var merged []types.Path
	for _, g := range groups {
		for _, p := range g {
			if p.Address == "" || rank(p.Category) < 0 {
				continue
			}
			if i, ok := index[p.Address]; ok {
				if Better(p.Category, merged[i].Category) {
					merged[i].Category = p.Category
				}
				continue
			}
			index[p.Address] = len(merged)
			merged = append(merged, p)
		}
	}
	return Rank(merged)
}

// Final 构造路由的最终路径集
//
// 包含客户端候选路径、broker 观察到的远端地址（Internet）
// 以及 broker 自身的广告地址（BrokerOrigin，始终可用的兜底路径）。
func Final(candidates []types.Path, observed, advertise string) []types.Path {
	var extra []types.Path
	if observed != "" {
		extra = append(extra, types.Path{Address: observed, Category: types.PathInternet})
	}
	if advertise != "" {
		extra = append(extra, types.Path{Address: advertise, Category: types.PathBrokerOrigin})
	}
	return Merge(candidates, extra)
}
