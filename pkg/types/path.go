package types

import "fmt"

// ============================================================================
//                              Path - 网络路径
// ============================================================================

// PathCategory 路径类别
//
// 类别只是排序提示，并不保证可达。数值与 wire 协议中的枚举一致。
type PathCategory int32

const (
	// PathInvalid 无效路径（排序时丢弃）
	PathInvalid PathCategory = 0
	// PathLocal 同一网络内的地址，延迟最低、无需中继
	PathLocal PathCategory = 1
	// PathInternet 直连公网地址，可能被防火墙/NAT 阻断
	PathInternet PathCategory = 2
	// PathBrokerOrigin broker 自身地址，可中继，始终可用
	PathBrokerOrigin PathCategory = 3
)

// String 返回类别名称
func (c PathCategory) String() string {
	switch c {
	case PathInvalid:
		return "invalid"
	case PathLocal:
		return "local"
	case PathInternet:
		return "internet"
	case PathBrokerOrigin:
		return "broker-origin"
	default:
		return fmt.Sprintf("category(%d)", int32(c))
	}
}

// IsValid 检查是否为已知的有效类别
func (c PathCategory) IsValid() bool {
	return c == PathLocal || c == PathInternet || c == PathBrokerOrigin
}

// Path 到达某个身份的一条候选路径
type Path struct {
	// Address 网络地址（host:port）
	Address string

	// Category 可达性类别
	Category PathCategory
}

// String 返回路径的可读形式
func (p Path) String() string {
	return p.Category.String() + "/" + p.Address
}

// ClonePaths 复制路径切片
func ClonePaths(paths []Path) []Path {
	if paths == nil {
		return nil
	}
	out := make([]Path, len(paths))
	copy(out, paths)
	return out
}
