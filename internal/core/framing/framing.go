package framing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/multiformats/go-varint"

	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
)

const (
	// DefaultMaxFrameSize 默认消息长度上限
	DefaultMaxFrameSize = 64 << 10

	// maxHeaderSize ProtoHeader 编码后的长度上限（单个 varint 字段）
	maxHeaderSize = 16

	// MaxPathSize 流路径头长度上限
	MaxPathSize = 1024
)

// ============================================================================
//                              Reader
// ============================================================================

// Reader 从字节流中读取帧
//
// Reader 不是并发安全的，每个流只应有一个读取者。
type Reader struct {
	br  *bufio.Reader
	max int
}

// NewReader 创建 Reader，maxSize <= 0 时使用 DefaultMaxFrameSize
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br, max: maxSize}
}

// ReadPath 读取流路径头
func (r *Reader) ReadPath() (string, error) {
	b, err := r.readDelimited(MaxPathSize)
	if err != nil {
		if errors.Is(err, ErrFrameTooLarge) {
			return "", fmt.Errorf("%w: path exceeds %d bytes", ErrInvalidPath, MaxPathSize)
		}
		return "", err
	}
	if len(b) == 0 || b[0] != '/' {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, b)
	}
	return string(b), nil
}

// ReadMsg 读取一条消息到 m
func (r *Reader) ReadMsg(m pb.Message) error {
	raw, err := r.readDelimited(maxHeaderSize)
	if err != nil {
		if errors.Is(err, ErrFrameTooLarge) {
			return ErrInvalidHeader
		}
		return err
	}

	var h pb.ProtoHeader
	if err := h.Unmarshal(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if h.Len > uint64(r.max) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, h.Len, r.max)
	}

	body := make([]byte, h.Len)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return unexpectedEOF(err)
	}
	return m.Unmarshal(body)
}

// readDelimited 读取一个 uvarint 长度前缀的数据块
func (r *Reader) readDelimited(max int) ([]byte, error) {
	n, err := varint.ReadUvarint(r.br)
	if err != nil {
		if errors.Is(err, varint.ErrOverflow) || errors.Is(err, varint.ErrNotMinimal) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		return nil, err
	}
	if n > uint64(max) {
		return nil, ErrFrameTooLarge
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.br, b); err != nil {
		return nil, unexpectedEOF(err)
	}
	return b, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ============================================================================
//                              Writer
// ============================================================================

// Writer 向字节流写入帧
//
// 每帧通过一次 Write 调用写出，Writer 可被多个 goroutine 共享。
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	max int
}

// NewWriter 创建 Writer，maxSize <= 0 时使用 DefaultMaxFrameSize
func NewWriter(w io.Writer, maxSize int) *Writer {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Writer{w: w, max: maxSize}
}

// WritePath 写出流路径头
func (w *Writer) WritePath(path string) error {
	if len(path) == 0 || len(path) > MaxPathSize || path[0] != '/' {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(path)))+len(path))
	buf = append(buf, varint.ToUvarint(uint64(len(path)))...)
	buf = append(buf, path...)
	return w.write(buf)
}

// WriteMsg 写出一条消息
func (w *Writer) WriteMsg(m pb.Message) error {
	body, err := m.Marshal()
	if err != nil {
		return err
	}
	if len(body) > w.max {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(body), w.max)
	}

	h := pb.ProtoHeader{Len: uint64(len(body))}
	header, err := h.Marshal()
	if err != nil {
		return err
	}

	buf := make([]byte, 0, varint.MaxLenUvarint63+len(header)+len(body))
	buf = append(buf, varint.ToUvarint(uint64(len(header)))...)
	buf = append(buf, header...)
	buf = append(buf, body...)
	return w.write(buf)
}

func (w *Writer) write(buf []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(buf)
	return err
}

// ============================================================================
//                              Stream
// ============================================================================

// Stream 组合 Reader 与 Writer
type Stream struct {
	*Reader
	*Writer
}

// NewStream 在双向字节流上创建帧读写器
func NewStream(rw io.ReadWriter, maxSize int) *Stream {
	return &Stream{
		Reader: NewReader(rw, maxSize),
		Writer: NewWriter(rw, maxSize),
	}
}
