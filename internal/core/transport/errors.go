package transport

import "errors"

var (
	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("transport: listener closed")

	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport: closed")

	// ErrUnsupportedScheme 不支持的地址协议
	ErrUnsupportedScheme = errors.New("transport: unsupported address scheme")

	// ErrNoPeerIdentity 对端没有出示证书
	ErrNoPeerIdentity = errors.New("transport: peer presented no certificate")
)
