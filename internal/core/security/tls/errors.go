package tls

import "errors"

// TLS 相关错误
var (
	// ErrNoCertificate 对端未提供证书
	ErrNoCertificate = errors.New("tls: no certificate provided")

	// ErrIdentityMismatch 对端身份与期望不符
	ErrIdentityMismatch = errors.New("tls: identity mismatch")

	// ErrInvalidPublicKey 证书公钥不是 Ed25519
	ErrInvalidPublicKey = errors.New("tls: invalid public key")

	// ErrCertificateExpired 证书不在有效期内
	ErrCertificateExpired = errors.New("tls: certificate expired or not yet valid")
)
