package gate

import (
	"fmt"

	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/metrics"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Reason 拒绝原因
type Reason int

const (
	// ReasonStaleTimestamp 时间戳超出窗口
	ReasonStaleTimestamp Reason = iota + 1
	// ReasonIdentityBusy 身份已有进行中的握手
	ReasonIdentityBusy
	// ReasonTimeout 超时或被取消
	ReasonTimeout
	// ReasonHandshakeRejected 握手失败
	ReasonHandshakeRejected
)

// String 返回原因名称
func (r Reason) String() string {
	switch r {
	case ReasonStaleTimestamp:
		return metrics.OutcomeStaleTimestamp
	case ReasonIdentityBusy:
		return metrics.OutcomeIdentityBusy
	case ReasonTimeout:
		return metrics.OutcomeTimeout
	case ReasonHandshakeRejected:
		return metrics.OutcomeHandshakeRejected
	default:
		return "unknown"
	}
}

// Err 返回对应的哨兵错误
func (r Reason) Err() error {
	switch r {
	case ReasonStaleTimestamp:
		return ErrStaleTimestamp
	case ReasonIdentityBusy:
		return ErrIdentityBusy
	case ReasonTimeout:
		return ErrTimeout
	default:
		return ErrHandshakeRejected
	}
}

// Outcome 门控操作的结果
//
// 变体：Continue、Done、Rejected。
type Outcome interface {
	isOutcome()
}

// Continue 握手未完成，Bytes 需要发回设备
type Continue struct {
	Bytes []byte
}

// Done 握手完成，路由已建立
type Done struct {
	// Bytes 用会话密钥加密的路由句柄
	Bytes []byte

	Route uint64
	Paths []types.Path

	// Superseded 路由被取代时关闭
	Superseded <-chan struct{}

	// Publication 携带 xaddr 的连接产生的发布记录，否则为 nil
	Publication *ledger.Publication
}

// Rejected 连接尝试失败，会话已结束
type Rejected struct {
	Reason Reason
	Err    error
}

func (Continue) isOutcome() {}
func (Done) isOutcome()     {}
func (Rejected) isOutcome() {}

// Error 实现 error
func (r Rejected) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason.String()
}

// Unwrap 返回原因对应的哨兵错误
func (r Rejected) Unwrap() []error {
	if r.Err != nil {
		return []error{r.Reason.Err(), r.Err}
	}
	return []error{r.Reason.Err()}
}

func rejected(reason Reason, err error) Rejected {
	return Rejected{Reason: reason, Err: err}
}
