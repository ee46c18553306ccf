package carrier

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/app"
	"github.com/dep2p/go-carrier/internal/core/framing"
	pb "github.com/dep2p/go-carrier/pkg/lib/proto/broker"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ===== 测试夹具 =====

func startBroker(t *testing.T) *app.Runtime {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Identity.KeyFile = filepath.Join(t.TempDir(), "broker.key")
	cfg.Transport.QUICListen = "127.0.0.1:0"
	cfg.Transport.EnableTCP = true
	cfg.Transport.TCPListen = "127.0.0.1:0"
	cfg.Transport.AdvertiseAddr = "127.0.0.1:7443"

	rt, err := app.NewBootstrap(cfg, app.WithStartTimeout(10*time.Second)).Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Stop(context.Background()) })
	return rt
}

func addr(t *testing.T, rt *app.Runtime, tcp bool) string {
	t.Helper()
	for _, a := range rt.Addrs() {
		if strings.HasPrefix(a, "tcp://") == tcp {
			return a
		}
	}
	t.Fatalf("no listener (tcp=%v) in %v", tcp, rt.Addrs())
	return ""
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dial(t *testing.T, rt *app.Runtime, key *Key, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithIdentity(key)}, opts...)
	c, err := Dial(testContext(t), addr(t, rt, false), rt.Identity.ID(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newKey(t *testing.T) *Key {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

func next(t *testing.T, s *Subscription) types.ChangeEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func skewedClock(d time.Duration) clock.Clock {
	m := clock.NewMock()
	m.Set(time.Now().Add(d))
	return m
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(5 * time.Second):
		return false
	}
}

// ===== 测试 =====

func TestConnect_Resolve(t *testing.T) {
	rt := startBroker(t)
	key := newKey(t)
	c := dial(t, rt, key, WithPaths(types.Path{Address: "10.0.0.2:9000", Category: types.PathLocal}))

	route, err := c.Connect(testContext(t))
	require.NoError(t, err)
	assert.NotZero(t, route.Handle)
	assert.Zero(t, route.Handle%2)
	assert.Equal(t, types.Path{Address: "10.0.0.2:9000", Category: types.PathLocal}, route.Paths[0])
	assert.Contains(t, route.Paths, types.Path{Address: "127.0.0.1:7443", Category: types.PathBrokerOrigin})
	assert.Same(t, route, c.Route())

	other := dial(t, rt, newKey(t))
	res, err := other.Resolve(testContext(t), key.ID())
	require.NoError(t, err)
	assert.Equal(t, route.Handle, res.Route)
	assert.Equal(t, route.Paths, res.Paths)

	_, err = other.Resolve(testContext(t), newKey(t).ID())
	assert.ErrorIs(t, err, ErrNotFound)

	// 关闭路由后身份不可解析
	require.NoError(t, route.Close())
	require.Eventually(t, func() bool {
		_, err := other.Resolve(testContext(t), key.ID())
		return err == ErrNotFound
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConnect_OverTCP(t *testing.T) {
	rt := startBroker(t)
	key := newKey(t)
	c, err := Dial(testContext(t), addr(t, rt, true), rt.Identity.ID(), WithIdentity(key))
	require.NoError(t, err)
	defer c.Close()

	route, err := c.Connect(testContext(t))
	require.NoError(t, err)
	snap, ok := rt.Routes.Lookup(key.ID())
	require.True(t, ok)
	assert.Equal(t, route.Handle, snap.Handle)
}

func TestConnect_SecondRouteSupersedesFirst(t *testing.T) {
	rt := startBroker(t)
	key := newKey(t)

	first, err := dial(t, rt, key).Connect(testContext(t))
	require.NoError(t, err)
	second, err := dial(t, rt, key).Connect(testContext(t))
	require.NoError(t, err)

	require.True(t, closed(first.Superseded()))
	<-first.Done()
	assert.ErrorIs(t, first.Err(), ErrSuperseded)
	assert.NotEqual(t, first.Handle, second.Handle)

	snap, ok := rt.Routes.Lookup(key.ID())
	require.True(t, ok)
	assert.Equal(t, second.Handle, snap.Handle)
	assert.Nil(t, second.Err())
}

func TestConnect_StaleClockRejected(t *testing.T) {
	rt := startBroker(t)
	c := dial(t, rt, newKey(t), WithClock(skewedClock(-time.Hour)))

	_, err := c.Connect(testContext(t))
	assert.ErrorIs(t, err, ErrRejected)
	assert.Nil(t, c.Route())
}

func TestDial_RequiresIdentity(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", types.Identity{})
	assert.ErrorIs(t, err, ErrNoIdentity)
	_, err = Dial(context.Background(), "127.0.0.1:1", types.Identity{}, WithIdentity(nil))
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestPublish_RequiresRoute(t *testing.T) {
	rt := startBroker(t)
	c := dial(t, rt, newKey(t))

	_, err := c.Publish(testContext(t), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.Subscribe(testContext(t), nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Close())
	_, err = c.Publish(testContext(t), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

// 订阅者先看到 a1，再看到 a2；a1 的发布者收到 Supersede
func TestPublish_SupersedeReachesOwnerAndSubscriber(t *testing.T) {
	rt := startBroker(t)
	pubKey := newKey(t)

	publisher := dial(t, rt, pubKey)
	_, err := publisher.Connect(testContext(t))
	require.NoError(t, err)

	watcher := dial(t, rt, newKey(t))
	_, err = watcher.Connect(testContext(t))
	require.NoError(t, err)
	sub, err := watcher.Subscribe(testContext(t), nil, types.IdentityFilter{Identity: pubKey.ID()})
	require.NoError(t, err)
	defer sub.Close()

	a1, err := publisher.Publish(testContext(t), []byte("a1"), nil)
	require.NoError(t, err)
	assert.Equal(t, types.PublishEvent{Identity: pubKey.ID(), XAddr: []byte("a1")}, next(t, sub))

	a2, err := publisher.Publish(testContext(t), []byte("a2"), nil)
	require.NoError(t, err)
	assert.Equal(t, types.PublishEvent{Identity: pubKey.ID(), XAddr: []byte("a2")}, next(t, sub))

	require.True(t, closed(a1.Superseded()))
	assert.ErrorIs(t, a1.Err(), ErrSuperseded)

	// 撤销当前发布
	require.NoError(t, a2.Close())
	assert.Equal(t, types.UnpublishEvent{Identity: pubKey.ID()}, next(t, sub))
}

func TestConnect_WithPublish(t *testing.T) {
	rt := startBroker(t)
	pubKey := newKey(t)

	watcher := dial(t, rt, newKey(t))
	_, err := watcher.Connect(testContext(t))
	require.NoError(t, err)
	sub, err := watcher.Subscribe(testContext(t), []byte("s"))
	require.NoError(t, err)
	defer sub.Close()

	route, err := dial(t, rt, pubKey).Connect(testContext(t), WithPublish([]byte("x1"), []byte("shadow")))
	require.NoError(t, err)

	published := make(chan []byte, 4)
	unpublished := make(chan Identity, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx, Handlers{
		OnPublish: func(id Identity, xaddr []byte) {
			if id == pubKey.ID() {
				published <- xaddr
			}
		},
		OnUnpublish: func(id Identity) { unpublished <- id },
	})

	select {
	case x := <-published:
		assert.Equal(t, []byte("x1"), x)
	case <-time.After(5 * time.Second):
		t.Fatal("publish not delivered")
	}

	// 断开路由撤销随连接发布的记录
	require.NoError(t, route.Close())
	select {
	case id := <-unpublished:
		assert.Equal(t, pubKey.ID(), id)
	case <-time.After(5 * time.Second):
		t.Fatal("unpublish not delivered")
	}
}

func TestSubscribe_SameShadowSupersedes(t *testing.T) {
	rt := startBroker(t)
	c := dial(t, rt, newKey(t))
	_, err := c.Connect(testContext(t))
	require.NoError(t, err)

	first, err := c.Subscribe(testContext(t), []byte("a"))
	require.NoError(t, err)
	other, err := c.Subscribe(testContext(t), []byte("b"))
	require.NoError(t, err)
	defer other.Close()
	require.Eventually(t, func() bool {
		return rt.Ledger.Index().Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
	second, err := c.Subscribe(testContext(t), []byte("a"))
	require.NoError(t, err)
	defer second.Close()

	_, err = first.Next(testContext(t))
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.True(t, closed(first.Done()))

	select {
	case <-other.Done():
		t.Fatal("subscription with a different shadow should stay open")
	default:
	}
}

func TestClient_CloseEndsRoute(t *testing.T) {
	rt := startBroker(t)
	key := newKey(t)
	c := dial(t, rt, key)
	route, err := c.Connect(testContext(t))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, closed(route.Done()))

	require.Eventually(t, func() bool {
		_, ok := rt.Routes.Lookup(key.ID())
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestKey_SaveLoad(t *testing.T) {
	k := newKey(t)
	path := filepath.Join(t.TempDir(), "device.key")
	require.NoError(t, SaveKey(k, path))

	loaded, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, k.ID(), loaded.ID())

	id, err := ParseIdentity(k.ID().String())
	require.NoError(t, err)
	assert.Equal(t, k.ID(), id)
}

func TestConnect_WithPublishReplacedKeepsRoute(t *testing.T) {
	rt := startBroker(t)
	c := dial(t, rt, newKey(t))
	route, err := c.Connect(testContext(t), WithPublish([]byte("x1"), nil))
	require.NoError(t, err)

	pub, err := c.Publish(testContext(t), []byte("x2"), nil)
	require.NoError(t, err)
	defer pub.Close()

	require.True(t, closed(route.PublishSuperseded()))
	select {
	case <-route.Done():
		t.Fatal("route should stay established")
	default:
	}
	assert.Nil(t, route.Err())

	rec, ok := rt.Ledger.Lookup(c.Identity())
	require.True(t, ok)
	assert.Equal(t, []byte("x2"), rec.XAddr)
}

// unknownChange 只携带未知字段的订阅变更
type unknownChange struct{}

func (unknownChange) Marshal() ([]byte, error) {
	return protowire.AppendVarint(protowire.AppendTag(nil, 9, protowire.VarintType), 1), nil
}

func (unknownChange) Unmarshal([]byte) error { return nil }

func TestSubscription_UnrecognizedChangeIsReported(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	s := newSubscription(&stream{Stream: framing.NewStream(local, 0), raw: local}, time.Second)
	defer s.Close()

	w := framing.NewStream(remote, 0)
	id := newKey(t).ID()
	require.NoError(t, w.WriteMsg(&pb.SubscribeChange{M: &pb.SubscribeChange_Unpublish{Unpublish: &pb.Unpublish{Identity: id.Bytes()}}}))
	assert.Equal(t, types.UnpublishEvent{Identity: id}, next(t, s))

	require.NoError(t, w.WriteMsg(unknownChange{}))
	_, err := s.Next(testContext(t))
	assert.ErrorIs(t, err, pb.ErrInvalidMessage)
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("订阅没有结束")
	}
	assert.ErrorIs(t, s.Err(), pb.ErrInvalidMessage)
}
