package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/dep2p/go-carrier/pkg/types"
)

// VerifyPeerCertificate 验证对端证书并返回其身份
//
// 验证逻辑：
//  1. 从证书公钥派生身份（唯一可信来源）
//  2. 验证证书有效期
//  3. 验证自签名完整性
//  4. 若指定了 expected，身份必须一致
func VerifyPeerCertificate(rawCerts [][]byte, expected types.Identity) (types.Identity, error) {
	if len(rawCerts) == 0 {
		return types.EmptyIdentity, ErrNoCertificate
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return types.EmptyIdentity, fmt.Errorf("parse certificate: %w", err)
	}

	id, err := IdentityFromCertificate(cert)
	if err != nil {
		return types.EmptyIdentity, err
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return types.EmptyIdentity, ErrCertificateExpired
	}

	if err := cert.CheckSignatureFrom(cert); err != nil {
		return types.EmptyIdentity, fmt.Errorf("verify self signature: %w", err)
	}

	if !expected.IsEmpty() && id != expected {
		return types.EmptyIdentity, fmt.Errorf("%w: expected %s, got %s",
			ErrIdentityMismatch, expected.ShortString(), id.ShortString())
	}
	return id, nil
}

// PeerIdentity 从已完成握手的连接状态读取对端身份
//
// 对端未提供证书时返回 ErrNoCertificate。
func PeerIdentity(state tls.ConnectionState) (types.Identity, error) {
	if len(state.PeerCertificates) == 0 {
		return types.EmptyIdentity, ErrNoCertificate
	}
	return IdentityFromCertificate(state.PeerCertificates[0])
}
