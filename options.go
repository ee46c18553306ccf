package carrier

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/pkg/types"
)

// Key 设备的长期 Ed25519 密钥
type Key = identity.Identity

// Identity 设备身份（Ed25519 公钥）
type Identity = types.Identity

// GenerateKey 生成新的设备密钥
func GenerateKey() (*Key, error) {
	return identity.Generate()
}

// LoadKey 从 PEM 文件加载设备密钥
func LoadKey(path string) (*Key, error) {
	return identity.Load(path)
}

// SaveKey 把设备密钥保存为 PEM 文件
func SaveKey(k *Key, path string) error {
	return identity.Save(k, path)
}

// ParseIdentity 解析 base58 编码的身份
func ParseIdentity(s string) (Identity, error) {
	return types.ParseIdentity(s)
}

// ============================================================================
//                              客户端选项
// ============================================================================

// Option 客户端选项
type Option func(*options) error

type options struct {
	key          *identity.Identity
	paths        []types.Path
	maxFrameSize int
	closeTimeout time.Duration
	transport    transport.Options
	clock        clock.Clock
}

func defaultOptions() options {
	return options{
		maxFrameSize: framing.DefaultMaxFrameSize,
		closeTimeout: 5 * time.Second,
		transport:    transport.DefaultOptions(),
		clock:        clock.New(),
	}
}

// WithIdentity 使用给定的设备密钥
func WithIdentity(k *Key) Option {
	return func(o *options) error {
		if k == nil {
			return ErrNoIdentity
		}
		o.key = k
		return nil
	}
}

// WithKeyFile 从文件加载设备密钥，文件不存在时生成并保存
func WithKeyFile(path string) Option {
	return func(o *options) error {
		k, err := identity.LoadOrGenerate(path, true)
		if err != nil {
			return err
		}
		o.key = k
		return nil
	}
}

// WithPaths 设置连接时上报的候选路径
func WithPaths(paths ...types.Path) Option {
	return func(o *options) error {
		o.paths = append(o.paths[:0], paths...)
		return nil
	}
}

// WithMaxFrameSize 设置单条消息长度上限
func WithMaxFrameSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.New("carrier: max frame size must be positive")
		}
		o.maxFrameSize = n
		return nil
	}
}

// WithHandshakeTimeout 设置传输层握手超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.transport.HandshakeTimeout = d
		return nil
	}
}

// WithKeepAlive 设置传输层保活周期，0 表示不发送保活
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) error {
		o.transport.KeepAlivePeriod = d
		return nil
	}
}

// WithClock 设置握手时间戳使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		if c == nil {
			return errors.New("carrier: nil clock")
		}
		o.clock = c
		return nil
	}
}
