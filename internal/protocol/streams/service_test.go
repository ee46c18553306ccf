package streams

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/transport"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
)

// ===== 测试夹具 =====

type harness struct {
	svc      *Service
	server   *transport.Transport
	serverID *identity.Identity
	client   *transport.Transport
	addr     string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	serverID, err := identity.Generate()
	require.NoError(t, err)
	clientID, err := identity.Generate()
	require.NoError(t, err)

	server, err := transport.New(serverID, transport.Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)
	client, err := transport.New(clientID, transport.Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)

	l, err := server.Listen(transport.TCP, "127.0.0.1:0")
	require.NoError(t, err)

	svc := New(opts...)
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Serve(l))

	t.Cleanup(func() {
		svc.Stop(context.Background())
		server.Close()
		client.Close()
	})
	return &harness{
		svc:      svc,
		server:   server,
		serverID: serverID,
		client:   client,
		addr:     "tcp://" + l.Addr().String(),
	}
}

func (h *harness) dial(t *testing.T) transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := h.client.Dial(ctx, h.addr, h.serverID.ID())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func openPath(t *testing.T, c transport.Conn, path string) (*framing.Stream, transport.Stream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.OpenStream(ctx)
	require.NoError(t, err)
	_ = s.SetDeadline(time.Now().Add(5 * time.Second))
	fs := framing.NewStream(s, 0)
	require.NoError(t, fs.WritePath(path))
	return fs, s
}

// ===== 测试 =====

func TestService_DispatchesByPath(t *testing.T) {
	h := newHarness(t)

	observed := make(chan string, 1)
	require.NoError(t, h.svc.RegisterHandler(protocolids.BrokerResolve, func(_ context.Context, s *Stream) error {
		var req pb.ResolveRequest
		if err := s.ReadMsg(&req); err != nil {
			return err
		}
		observed <- s.Conn.ObservedAddr()
		return s.WriteMsg(&pb.ResolveResponse{Ok: true, Route: 42})
	}))

	c := h.dial(t)
	fs, _ := openPath(t, c, protocolids.BrokerResolve)
	require.NoError(t, fs.WriteMsg(&pb.ResolveRequest{Identity: make([]byte, 32)}))

	var resp pb.ResolveResponse
	require.NoError(t, fs.ReadMsg(&resp))
	assert.True(t, resp.Ok)
	assert.Equal(t, uint64(42), resp.Route)
	assert.Equal(t, c.LocalAddr().String(), <-observed)

	// 处理器返回后服务端关闭写方向
	assert.ErrorIs(t, fs.ReadMsg(&resp), io.EOF)
}

func TestService_UnknownPathEndsStream(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	fs, _ := openPath(t, c, protocolids.BrokerPublish)
	var resp pb.PublishChange
	assert.ErrorIs(t, fs.ReadMsg(&resp), io.EOF)

	// 连接仍然可用
	require.NoError(t, h.svc.RegisterHandler(protocolids.BrokerResolve, func(_ context.Context, s *Stream) error {
		return s.WriteMsg(&pb.ResolveResponse{Ok: true})
	}))
	fs, _ = openPath(t, c, protocolids.BrokerResolve)
	var rr pb.ResolveResponse
	require.NoError(t, fs.ReadMsg(&rr))
	assert.True(t, rr.Ok)
}

func TestService_ProtocolErrorClosesConn(t *testing.T) {
	h := newHarness(t, WithMaxFrameSize(16))

	ctxs := make(chan context.Context, 1)
	require.NoError(t, h.svc.RegisterHandler(protocolids.BrokerConnect, func(ctx context.Context, s *Stream) error {
		ctxs <- ctx
		var req pb.ConnectRequest
		return s.ReadMsg(&req)
	}))

	c := h.dial(t)
	fs, _ := openPath(t, c, protocolids.BrokerConnect)
	require.NoError(t, fs.Writer.WriteMsg(&pb.ConnectRequest{Handshake: make([]byte, 64)}))

	var connCtx context.Context
	select {
	case connCtx = <-ctxs:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not invoked")
	}
	select {
	case <-connCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection context not cancelled")
	}
}

func TestService_StopCancelsHandlers(t *testing.T) {
	h := newHarness(t)

	started := make(chan struct{})
	require.NoError(t, h.svc.RegisterHandler(protocolids.BrokerSubscribe, func(ctx context.Context, _ *Stream) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	c := h.dial(t)
	openPath(t, c, protocolids.BrokerSubscribe)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not invoked")
	}

	done := make(chan error, 1)
	go func() { done <- h.svc.Stop(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, h.svc.Stop(context.Background()), ErrNotStarted)
}

func TestService_RegisterHandler(t *testing.T) {
	svc := New()
	noop := func(context.Context, *Stream) error { return nil }

	assert.ErrorIs(t, svc.RegisterHandler("", noop), ErrEmptyProtocol)
	assert.ErrorIs(t, svc.RegisterHandler("/unknown/path", noop), ErrInvalidProtocol)
	require.NoError(t, svc.RegisterHandler(protocolids.PeerConnect, noop))
	assert.ErrorIs(t, svc.RegisterHandler(protocolids.PeerConnect, noop), ErrHandlerExists)

	require.NoError(t, svc.UnregisterHandler(protocolids.PeerConnect))
	assert.ErrorIs(t, svc.UnregisterHandler(protocolids.PeerConnect), ErrHandlerNotFound)

	assert.ErrorIs(t, svc.Serve(nil), ErrNotStarted)
	require.NoError(t, svc.Start(context.Background()))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, svc.Stop(context.Background()))
}
