package streams

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/transport"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
)

// Conn 一个入站连接及其附加状态
type Conn struct {
	transport.Conn
	ID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc

	values sync.Map
}

func newConn(parent context.Context, c transport.Conn) *Conn {
	ctx, cancel := context.WithCancel(parent)
	return &Conn{Conn: c, ID: uuid.New(), ctx: ctx, cancel: cancel}
}

// Context 连接关闭时被取消
func (c *Conn) Context() context.Context {
	return c.ctx
}

// SetValue 在连接上附加一个值
func (c *Conn) SetValue(key, value any) {
	c.values.Store(key, value)
}

// CompareAndSwapValue 仅当当前值为 old 时替换
func (c *Conn) CompareAndSwapValue(key, old, value any) bool {
	if old == nil {
		_, loaded := c.values.LoadOrStore(key, value)
		return !loaded
	}
	return c.values.CompareAndSwap(key, old, value)
}

// Value 返回附加的值
func (c *Conn) Value(key any) (any, bool) {
	return c.values.Load(key)
}

// DeleteValue 仅当当前值为 old 时删除
func (c *Conn) DeleteValue(key, old any) bool {
	return c.values.CompareAndDelete(key, old)
}

// ObservedAddr 返回对端的 host:port
func (c *Conn) ObservedAddr() string {
	if a := c.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Stream 已选定路径的入站流
type Stream struct {
	*framing.Stream

	Path string
	Conn *Conn

	raw       transport.Stream
	closeOnce sync.Once
}

// Close 关闭写方向
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.raw.Close() })
	return err
}

// Interrupt 让阻塞的读取立即返回
func (s *Stream) Interrupt() {
	_ = s.raw.SetReadDeadline(time.Now())
}

// isProtocolError 判断是否是需要关闭连接的分帧或解析错误
func isProtocolError(err error) bool {
	return errors.Is(err, framing.ErrFrameTooLarge) ||
		errors.Is(err, framing.ErrInvalidHeader) ||
		errors.Is(err, framing.ErrInvalidPath) ||
		errors.Is(err, pb.ErrInvalidMessage) ||
		errors.Is(err, pb.ErrUnknownVariant)
}

// isTimeout 判断是否是截止时间导致的错误
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
