package federation

import "errors"

var (
	// ErrPeerUnreachable 对端 broker 不可达
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrPeerRejected 对端拒绝了公告
	ErrPeerRejected = errors.New("peer rejected announcement")

	// ErrUnknownPeer 公告来自未配置的 broker
	ErrUnknownPeer = errors.New("unknown peer broker")

	// ErrInvalidAnnouncement 公告字段无效
	ErrInvalidAnnouncement = errors.New("invalid announcement")

	// errCoalesced 公告已被同一身份更新的公告替换
	errCoalesced = errors.New("announcement coalesced")
)
