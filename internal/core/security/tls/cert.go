package tls

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/pkg/types"
)

// certValidity 证书有效期
const certValidity = 365 * 24 * time.Hour

// GenerateCertificate 生成自签名证书
//
// 证书直接使用身份私钥签名，证书公钥即身份公钥。
func GenerateCertificate(id *identity.Identity) (*tls.Certificate, error) {
	if id == nil {
		return nil, fmt.Errorf("identity 未设置")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("生成序列号失败: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"carrier"},
			CommonName:   id.ID().String(),
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	priv := id.PrivateKey()
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	if err != nil {
		return nil, fmt.Errorf("创建证书失败: %w", err)
	}

	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("解析证书失败: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, nil
}

// IdentityFromCertificate 从证书公钥派生身份
func IdentityFromCertificate(cert *x509.Certificate) (types.Identity, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return types.EmptyIdentity, fmt.Errorf("%w: %T", ErrInvalidPublicKey, cert.PublicKey)
	}
	return types.IdentityFromPublicKey(pub)
}
