package ledger

import (
	"github.com/google/uuid"

	"github.com/dep2p/go-carrier/pkg/types"
)

// Publication 一条发布记录
//
// 字段在创建后不变；生命周期状态由所属分片锁保护。
type Publication struct {
	ID       uuid.UUID
	Identity types.Identity
	XAddr    []byte
	Shadow   []byte

	// Route 绑定的本地路由句柄，0 表示来自联邦
	Route uint64

	ended      bool
	superseded chan struct{}
	done       chan struct{}
}

func newPublication(id types.Identity, xaddr, shadow []byte, route uint64) *Publication {
	return &Publication{
		ID:         uuid.New(),
		Identity:   id,
		XAddr:      append([]byte(nil), xaddr...),
		Shadow:     append([]byte(nil), shadow...),
		Route:      route,
		superseded: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Superseded 返回被取代时关闭的通道
//
// 所有者应向自己的发布流发送 Supersede 并结束。
func (p *Publication) Superseded() <-chan struct{} {
	return p.superseded
}

// Done 返回记录不再是当前记录时关闭的通道（取代或撤销）
func (p *Publication) Done() <-chan struct{} {
	return p.done
}

// WasSuperseded 报告记录是否因被取代而结束
//
// superseded 先于 done 关闭：观察到 Done 之后调用，结果确定。
func (p *Publication) WasSuperseded() bool {
	select {
	case <-p.superseded:
		return true
	default:
		return false
	}
}

// end 在持有分片锁时调用
func (p *Publication) end(superseded bool) {
	if p.ended {
		return
	}
	p.ended = true
	if superseded {
		close(p.superseded)
	}
	close(p.done)
}

// Record 发布记录的只读视图
type Record struct {
	Identity types.Identity
	XAddr    []byte
	Shadow   []byte
	Route    uint64
}

func (p *Publication) record() Record {
	return Record{
		Identity: p.Identity,
		XAddr:    append([]byte(nil), p.XAddr...),
		Shadow:   append([]byte(nil), p.Shadow...),
		Route:    p.Route,
	}
}
