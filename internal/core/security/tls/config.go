package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ConfigBuilder TLS 配置构建器
type ConfigBuilder struct {
	identity *identity.Identity
	cert     *tls.Certificate

	nextProtos   []string
	sessionCache tls.ClientSessionCache
}

// NewConfigBuilder 创建配置构建器
func NewConfigBuilder(id *identity.Identity) *ConfigBuilder {
	return &ConfigBuilder{identity: id}
}

// WithCertificate 设置证书
func (b *ConfigBuilder) WithCertificate(cert *tls.Certificate) *ConfigBuilder {
	b.cert = cert
	return b
}

// WithNextProtos 设置 ALPN 协议
func (b *ConfigBuilder) WithNextProtos(protos []string) *ConfigBuilder {
	b.nextProtos = protos
	return b
}

// WithSessionCache 设置 Session Cache（用于重连）
func (b *ConfigBuilder) WithSessionCache(cache tls.ClientSessionCache) *ConfigBuilder {
	b.sessionCache = cache
	return b
}

// BuildServerConfig 构建服务端 TLS 配置
//
// 客户端证书是可选的；提供了就必须能通过身份校验。
func (b *ConfigBuilder) BuildServerConfig() (*tls.Config, error) {
	cert, err := b.ensureCertificate()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   b.nextProtos,
		ClientAuth:   tls.RequestClientCert,
		// 自签名证书，使用 VerifyPeerCertificate 进行自定义验证
		InsecureSkipVerify: true, //nolint:gosec
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return nil
			}
			_, err := VerifyPeerCertificate(rawCerts, types.EmptyIdentity)
			return err
		},
	}, nil
}

// BuildClientConfig 构建客户端 TLS 配置
//
// expected 为空时接受任何身份的 broker。
func (b *ConfigBuilder) BuildClientConfig(expected types.Identity) (*tls.Config, error) {
	cert, err := b.ensureCertificate()
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   b.nextProtos,
		ServerName:   "carrier",
		// 自签名证书，使用 VerifyPeerCertificate 进行自定义验证
		InsecureSkipVerify: true, //nolint:gosec
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := VerifyPeerCertificate(rawCerts, expected)
			return err
		},
	}
	if b.sessionCache != nil {
		config.ClientSessionCache = b.sessionCache
	}
	return config, nil
}

// ensureCertificate 确保有证书可用
func (b *ConfigBuilder) ensureCertificate() (*tls.Certificate, error) {
	if b.cert != nil {
		return b.cert, nil
	}

	cert, err := GenerateCertificate(b.identity)
	if err != nil {
		return nil, fmt.Errorf("生成证书失败: %w", err)
	}
	b.cert = cert
	return cert, nil
}
