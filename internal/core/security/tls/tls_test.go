package tls

import (
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/pkg/types"
)

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func TestGenerateCertificate(t *testing.T) {
	id := newIdentity(t)
	cert, err := GenerateCertificate(id)
	require.NoError(t, err)

	got, err := IdentityFromCertificate(cert.Leaf)
	require.NoError(t, err)
	assert.Equal(t, id.ID(), got)

	verified, err := VerifyPeerCertificate(cert.Certificate, id.ID())
	require.NoError(t, err)
	assert.Equal(t, id.ID(), verified)
}

func TestVerifyPeerCertificate_Errors(t *testing.T) {
	_, err := VerifyPeerCertificate(nil, types.EmptyIdentity)
	assert.ErrorIs(t, err, ErrNoCertificate)

	cert, err := GenerateCertificate(newIdentity(t))
	require.NoError(t, err)
	_, err = VerifyPeerCertificate(cert.Certificate, newIdentity(t).ID())
	assert.ErrorIs(t, err, ErrIdentityMismatch)

	_, err = VerifyPeerCertificate([][]byte{[]byte("garbage")}, types.EmptyIdentity)
	assert.Error(t, err)
}

// handshakePipe 在回环 TCP 连接上完成一次 TLS 握手
func handshakePipe(t *testing.T, server, client *tls.Config) (tls.ConnectionState, tls.ConnectionState, error, error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	type result struct {
		state tls.ConnectionState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			done <- result{err: err}
			return
		}
		defer c.Close()
		srv := tls.Server(c, server)
		err = srv.Handshake()
		done <- result{state: srv.ConnectionState(), err: err}
	}()

	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	cli := tls.Client(raw, client)
	cliErr := cli.Handshake()
	if cliErr != nil {
		_ = raw.Close()
	}
	res := <-done
	return res.state, cli.ConnectionState(), res.err, cliErr
}

func TestMutualIdentity(t *testing.T) {
	broker, device := newIdentity(t), newIdentity(t)

	server, err := NewConfigBuilder(broker).WithNextProtos([]string{"carrier-broker"}).BuildServerConfig()
	require.NoError(t, err)
	client, err := NewConfigBuilder(device).WithNextProtos([]string{"carrier-broker"}).BuildClientConfig(broker.ID())
	require.NoError(t, err)

	srvState, cliState, srvErr, cliErr := handshakePipe(t, server, client)
	require.NoError(t, srvErr)
	require.NoError(t, cliErr)

	gotDevice, err := PeerIdentity(srvState)
	require.NoError(t, err)
	assert.Equal(t, device.ID(), gotDevice)

	gotBroker, err := PeerIdentity(cliState)
	require.NoError(t, err)
	assert.Equal(t, broker.ID(), gotBroker)
	assert.Equal(t, "carrier-broker", cliState.NegotiatedProtocol)
}

func TestClientRejectsWrongBroker(t *testing.T) {
	broker := newIdentity(t)

	server, err := NewConfigBuilder(broker).BuildServerConfig()
	require.NoError(t, err)
	client, err := NewConfigBuilder(newIdentity(t)).BuildClientConfig(newIdentity(t).ID())
	require.NoError(t, err)

	_, _, _, cliErr := handshakePipe(t, server, client)
	assert.ErrorIs(t, cliErr, ErrIdentityMismatch)
}

func TestPeerIdentity_NoCertificate(t *testing.T) {
	_, err := PeerIdentity(tls.ConnectionState{})
	assert.ErrorIs(t, err, ErrNoCertificate)
}
