package broker

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/core/framing"
	"github.com/dep2p/go-carrier/internal/core/gate"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/security/noise"
	"github.com/dep2p/go-carrier/internal/core/transport"
	"github.com/dep2p/go-carrier/internal/protocol/streams"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/protocolids"
	"github.com/dep2p/go-carrier/pkg/types"
)

const advertise = "198.51.100.1:7443"

// ===== 测试夹具 =====

type env struct {
	gate     *gate.Gate
	routes   *routetable.Table
	ledger   *ledger.Ledger
	brokerID *identity.Identity
	addr     string
	client   *transport.Transport
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	return newEnvClock(t, nil, opts...)
}

// newEnvClock 使用指定时钟驱动握手门控，nil 表示真实时钟
func newEnvClock(t *testing.T, clk clock.Clock, opts ...Option) *env {
	t.Helper()
	brokerID, err := identity.Generate()
	require.NoError(t, err)

	routes := routetable.New(routetable.Config{})
	l := ledger.New(ledger.Config{})
	t.Cleanup(routes.Subscribe(l))

	crypto, err := noise.New(brokerID.PrivateKey())
	require.NoError(t, err)
	g, err := gate.New(gate.Config{
		Clock:     clk,
		Advertise: advertise,
		Crypto:    crypto,
		Routes:    routes,
		Ledger:    l,
	})
	require.NoError(t, err)
	g.Start()

	svc, err := New(Deps{Gate: g, Routes: routes, Ledger: l}, opts...)
	require.NoError(t, err)
	ss := streams.New()
	require.NoError(t, svc.Register(ss))
	require.NoError(t, ss.Start(context.Background()))

	server, err := transport.New(brokerID, transport.Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)
	ln, err := server.Listen(transport.TCP, "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ss.Serve(ln))

	clientID, err := identity.Generate()
	require.NoError(t, err)
	client, err := transport.New(clientID, transport.Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		ss.Stop(context.Background())
		server.Close()
		g.Stop()
	})
	return &env{
		gate:     g,
		routes:   routes,
		ledger:   l,
		brokerID: brokerID,
		addr:     "tcp://" + ln.Addr().String(),
		client:   client,
	}
}

func (e *env) dial(t *testing.T) transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := e.client.Dial(ctx, e.addr, e.brokerID.ID())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

type clientStream struct {
	*framing.Stream
	raw transport.Stream
}

func open(t *testing.T, c transport.Conn, path string) *clientStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.OpenStream(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetDeadline(time.Now().Add(10*time.Second)))
	fs := framing.NewStream(s, 0)
	require.NoError(t, fs.WritePath(path))
	return &clientStream{Stream: fs, raw: s}
}

func newDevice(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

// connect 在连接上跑完一次握手，返回保持打开的 connect 流与最终应答
func connect(t *testing.T, c transport.Conn, dev *identity.Identity, xaddr []byte) (*clientStream, *pb.ConnectResponse) {
	t.Helper()
	ts := uint64(time.Now().Unix())
	init, err := noise.NewInitiator(dev.PrivateKey(), ts)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	st := open(t, c, protocolids.BrokerConnect)
	require.NoError(t, st.WriteMsg(&pb.ConnectRequest{
		Identity:  dev.ID().Bytes(),
		Timestamp: ts,
		Handshake: msg1,
		Paths:     []*pb.Path{{Ipaddr: "10.0.0.2:1", Category: pb.Path_Local}},
		Xaddr:     xaddr,
	}))

	var resp pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&resp))
	require.True(t, resp.Ok)
	require.Zero(t, resp.Route)

	msg3, err := init.Second(resp.Handshake)
	require.NoError(t, err)
	require.NoError(t, st.WriteMsg(&pb.ConnectRequest{Handshake: msg3}))

	var final pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&final))
	require.True(t, final.Ok)

	plain, err := init.Open(final.Handshake)
	require.NoError(t, err)
	require.Equal(t, final.Route, binary.BigEndian.Uint64(plain))
	return st, &final
}

func readChange(t *testing.T, st *clientStream) types.ChangeEvent {
	t.Helper()
	var change pb.SubscribeChange
	require.NoError(t, st.ReadMsg(&change))
	ev, err := pb.ChangeToEvent(&change)
	require.NoError(t, err)
	return ev
}

func subscribe(t *testing.T, c transport.Conn, shadow string, filters ...*pb.Filter) *clientStream {
	t.Helper()
	st := open(t, c, protocolids.BrokerSubscribe)
	require.NoError(t, st.WriteMsg(&pb.SubscribeRequest{Shadow: []byte(shadow), Filter: filters}))
	return st
}

func identityFilter(id types.Identity) *pb.Filter {
	return &pb.Filter{M: &pb.Filter_Identity{Identity: id.Bytes()}}
}

// ===== connect =====

func TestConnect_EstablishesRoute(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	c := e.dial(t)

	st, resp := connect(t, c, dev, nil)
	assert.Zero(t, resp.Route%2)

	paths := pb.PathsToTypes(resp.Paths)
	require.NotEmpty(t, paths)
	assert.Equal(t, types.Path{Address: "10.0.0.2:1", Category: types.PathLocal}, paths[0])
	assert.Contains(t, paths, types.Path{Address: advertise, Category: types.PathBrokerOrigin})

	snap, ok := e.routes.Lookup(dev.ID())
	require.True(t, ok)
	assert.Equal(t, resp.Route, snap.Handle)

	// 关闭 connect 流即断开
	require.NoError(t, st.raw.Close())
	require.Eventually(t, func() bool {
		_, ok := e.routes.Lookup(dev.ID())
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnect_SecondCompletionSupersedesFirst(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)

	first, firstResp := connect(t, e.dial(t), dev, nil)
	_, secondResp := connect(t, e.dial(t), dev, nil)
	assert.NotEqual(t, firstResp.Route, secondResp.Route)

	var resp pb.ConnectResponse
	require.NoError(t, first.ReadMsg(&resp))
	assert.False(t, resp.Ok)
	assert.True(t, resp.Supersede)
	assert.Equal(t, firstResp.Route, resp.Route)
	assert.ErrorIs(t, first.ReadMsg(&resp), io.EOF)

	snap, ok := e.routes.Lookup(dev.ID())
	require.True(t, ok)
	assert.Equal(t, secondResp.Route, snap.Handle)
}

func TestConnect_StaleTimestampRejected(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	c := e.dial(t)

	st := open(t, c, protocolids.BrokerConnect)
	require.NoError(t, st.WriteMsg(&pb.ConnectRequest{
		Identity:  dev.ID().Bytes(),
		Timestamp: uint64(time.Now().Add(-time.Hour).Unix()),
	}))

	var resp pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&resp))
	assert.False(t, resp.Ok)
	assert.ErrorIs(t, st.ReadMsg(&resp), io.EOF)
	assert.Zero(t, e.routes.Stats().Pending)
}

func TestConnect_InvalidIdentity(t *testing.T) {
	e := newEnv(t)
	st := open(t, e.dial(t), protocolids.BrokerConnect)
	require.NoError(t, st.WriteMsg(&pb.ConnectRequest{Identity: []byte("short")}))

	var resp pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&resp))
	assert.False(t, resp.Ok)
}

func TestConnect_RateLimited(t *testing.T) {
	e := newEnv(t, WithConnectRate(0.001, 1))
	dev := newDevice(t)
	c := e.dial(t)

	connect(t, c, dev, nil)

	st := open(t, c, protocolids.BrokerConnect)
	var resp pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&resp))
	assert.False(t, resp.Ok)

	// 限流按连接计算
	connect(t, e.dial(t), newDevice(t), nil)
}

func TestConnect_PublishBearing(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	st, _ := connect(t, e.dial(t), dev, []byte("xaddr-1"))

	rec, ok := e.ledger.Lookup(dev.ID())
	require.True(t, ok)
	assert.Equal(t, []byte("xaddr-1"), rec.XAddr)

	require.NoError(t, st.raw.Close())
	require.Eventually(t, func() bool {
		_, ok := e.ledger.Lookup(dev.ID())
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnect_HandshakeTimeoutRejected(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Now())
	e := newEnvClock(t, clk)
	dev := newDevice(t)

	ts := uint64(clk.Now().Unix())
	init, err := noise.NewInitiator(dev.PrivateKey(), ts)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	st := open(t, e.dial(t), protocolids.BrokerConnect)
	require.NoError(t, st.WriteMsg(&pb.ConnectRequest{
		Identity:  dev.ID().Bytes(),
		Timestamp: ts,
		Handshake: msg1,
	}))
	var resp pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&resp))
	require.True(t, resp.Ok)

	// 设备不再发送第三条握手消息
	clk.Add(gate.DefaultTimeout + time.Second)
	e.gate.Reap()

	require.NoError(t, st.ReadMsg(&resp))
	assert.False(t, resp.Ok)
	assert.False(t, resp.Supersede)
	assert.ErrorIs(t, st.ReadMsg(&resp), io.EOF)
	assert.Zero(t, e.routes.Stats().Pending)
	_, ok := e.routes.Lookup(dev.ID())
	assert.False(t, ok)
}

func TestConnect_PublishReplacedByPublishStream(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	c := e.dial(t)
	st, resp := connect(t, c, dev, []byte("x1"))

	pub := open(t, c, protocolids.BrokerPublish)
	require.NoError(t, pub.WriteMsg(&pb.PublishRequest{Xaddr: []byte("x2")}))

	var notice pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&notice))
	assert.True(t, notice.Ok)
	assert.True(t, notice.Supersede)
	assert.Equal(t, resp.Route, notice.Route)

	// 路由不受影响
	snap, ok := e.routes.Lookup(dev.ID())
	require.True(t, ok)
	assert.Equal(t, resp.Route, snap.Handle)
	rec, ok := e.ledger.Lookup(dev.ID())
	require.True(t, ok)
	assert.Equal(t, []byte("x2"), rec.XAddr)
}

func TestConnect_PublishReplacedByRemoteRecord(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	st, resp := connect(t, e.dial(t), dev, []byte("x1"))

	// 联邦写入的记录不绑定本地路由
	e.ledger.Publish(dev.ID(), []byte("remote"), nil, 0)

	var notice pb.ConnectResponse
	require.NoError(t, st.ReadMsg(&notice))
	assert.True(t, notice.Ok)
	assert.True(t, notice.Supersede)
	assert.Equal(t, resp.Route, notice.Route)

	// 之后路由被取代时仍然收到路由的 Supersede
	connect(t, e.dial(t), dev, nil)
	require.NoError(t, st.ReadMsg(&notice))
	assert.False(t, notice.Ok)
	assert.True(t, notice.Supersede)
	assert.ErrorIs(t, st.ReadMsg(&notice), io.EOF)
}

func TestConnect_RouteSupersedeWinsOverPublishNotice(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	first, _ := connect(t, e.dial(t), dev, []byte("x1"))
	connect(t, e.dial(t), dev, []byte("x2"))

	var resp pb.ConnectResponse
	require.NoError(t, first.ReadMsg(&resp))
	assert.False(t, resp.Ok)
	assert.True(t, resp.Supersede)
	assert.ErrorIs(t, first.ReadMsg(&resp), io.EOF)
}

// ===== publish / subscribe =====

func TestAwaitPublication_SupersededBeforeWait(t *testing.T) {
	l := ledger.New(ledger.Config{})
	id := newDevice(t).ID()

	// 记录在等待之前已被取代，Done 与 Superseded 同时就绪
	for i := 0; i < 200; i++ {
		p := l.Publish(id, []byte("a1"), nil, 2)
		l.Publish(id, []byte("a2"), nil, 4)
		require.True(t, awaitPublication(context.Background(), p), "iteration %d", i)
	}

	p := l.Publish(id, []byte("a3"), nil, 6)
	require.True(t, l.Withdraw(p))
	assert.False(t, awaitPublication(context.Background(), p))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, awaitPublication(ctx, l.Publish(id, []byte("a4"), nil, 8)))
}

func TestPublishSubscribe_Supersede(t *testing.T) {
	e := newEnv(t)
	a, b := newDevice(t), newDevice(t)
	ca, cb := e.dial(t), e.dial(t)
	connA, _ := connect(t, ca, a, nil)
	connect(t, cb, b, nil)

	pub1 := open(t, ca, protocolids.BrokerPublish)
	require.NoError(t, pub1.WriteMsg(&pb.PublishRequest{Xaddr: []byte("a1")}))
	require.Eventually(t, func() bool {
		_, ok := e.ledger.Lookup(a.ID())
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	sub := subscribe(t, cb, "", identityFilter(a.ID()))
	assert.Equal(t, types.PublishEvent{Identity: a.ID(), XAddr: []byte("a1")}, readChange(t, sub))

	pub2 := open(t, ca, protocolids.BrokerPublish)
	require.NoError(t, pub2.WriteMsg(&pb.PublishRequest{Xaddr: []byte("a2")}))

	var change pb.PublishChange
	require.NoError(t, pub1.ReadMsg(&change))
	assert.IsType(t, &pb.PublishChange_Supersede{}, change.M)
	assert.ErrorIs(t, pub1.ReadMsg(&change), io.EOF)

	assert.Equal(t, types.PublishEvent{Identity: a.ID(), XAddr: []byte("a2")}, readChange(t, sub))

	// 断开 A 撤销它的发布
	require.NoError(t, connA.raw.Close())
	assert.Equal(t, types.UnpublishEvent{Identity: a.ID()}, readChange(t, sub))
}

func TestPublish_ClosingStreamWithdraws(t *testing.T) {
	e := newEnv(t)
	a, b := newDevice(t), newDevice(t)
	ca, cb := e.dial(t), e.dial(t)
	connect(t, ca, a, nil)
	connect(t, cb, b, nil)

	sub := subscribe(t, cb, "", &pb.Filter{M: &pb.Filter_Immediate{Immediate: true}})

	pub := open(t, ca, protocolids.BrokerPublish)
	require.NoError(t, pub.WriteMsg(&pb.PublishRequest{Xaddr: []byte("a1")}))
	assert.Equal(t, types.PublishEvent{Identity: a.ID(), XAddr: []byte("a1")}, readChange(t, sub))

	require.NoError(t, pub.raw.Close())
	assert.Equal(t, types.UnpublishEvent{Identity: a.ID()}, readChange(t, sub))

	// 路由不受影响
	_, ok := e.routes.Lookup(a.ID())
	assert.True(t, ok)
}

func TestPublish_RequiresConnect(t *testing.T) {
	e := newEnv(t)
	c := e.dial(t)

	pub := open(t, c, protocolids.BrokerPublish)
	require.NoError(t, pub.WriteMsg(&pb.PublishRequest{Xaddr: []byte("x")}))
	var change pb.PublishChange
	assert.ErrorIs(t, pub.ReadMsg(&change), io.EOF)
	assert.Zero(t, e.ledger.Len())

	sub := subscribe(t, c, "")
	var sc pb.SubscribeChange
	assert.ErrorIs(t, sub.ReadMsg(&sc), io.EOF)
}

func TestSubscribe_SameOriginSupersedes(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	c := e.dial(t)
	connect(t, c, dev, nil)

	first := subscribe(t, c, "shadow")
	// 等待第一个订阅注册
	require.Eventually(t, func() bool { return e.ledger.Index().Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	subscribe(t, c, "shadow")
	assert.Equal(t, types.SupersedeEvent{}, readChange(t, first))

	var sc pb.SubscribeChange
	assert.ErrorIs(t, first.ReadMsg(&sc), io.EOF)
}

// ===== resolve =====

func TestResolve(t *testing.T) {
	e := newEnv(t)
	dev := newDevice(t)
	c := e.dial(t)
	_, resp := connect(t, c, dev, nil)

	st := open(t, c, protocolids.BrokerResolve)
	require.NoError(t, st.WriteMsg(&pb.ResolveRequest{Identity: dev.ID().Bytes()}))
	var rr pb.ResolveResponse
	require.NoError(t, st.ReadMsg(&rr))
	assert.True(t, rr.Ok)
	assert.Equal(t, resp.Route, rr.Route)
	assert.Equal(t, pb.PathsToTypes(resp.Paths), pb.PathsToTypes(rr.Paths))

	st = open(t, c, protocolids.BrokerResolve)
	require.NoError(t, st.WriteMsg(&pb.ResolveRequest{Identity: newDevice(t).ID().Bytes()}))
	require.NoError(t, st.ReadMsg(&rr))
	assert.False(t, rr.Ok)
}
