package gate

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/core/ledger"
	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/security"
	"github.com/dep2p/go-carrier/internal/core/security/noise"
	"github.com/dep2p/go-carrier/internal/core/subscription"
	"github.com/dep2p/go-carrier/pkg/types"
)

// ===== 测试夹具 =====

type fixture struct {
	gate   *Gate
	clock  *clock.Mock
	routes *routetable.Table
	ledger *ledger.Ledger
}

func newFixture(t *testing.T, crypto security.Crypto) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))

	routes := routetable.New(routetable.Config{Clock: clk, ReservationTTL: time.Minute})
	l := ledger.New(ledger.Config{})
	cancel := routes.Subscribe(l)
	t.Cleanup(cancel)

	g, err := New(Config{
		FreshnessWindow: 30 * time.Second,
		Timeout:         10 * time.Second,
		Advertise:       "198.51.100.1:7443",
		Clock:           clk,
		Crypto:          crypto,
		Routes:          routes,
		Ledger:          l,
	})
	require.NoError(t, err)
	return &fixture{gate: g, clock: clk, routes: routes, ledger: l}
}

func newNoiseCrypto(t *testing.T) security.Crypto {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	c, err := noise.New(priv)
	require.NoError(t, err)
	return c
}

type device struct {
	priv ed25519.PrivateKey
	id   types.Identity
}

func newDevice(t *testing.T) device {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := types.IdentityFromPublicKey(pub)
	require.NoError(t, err)
	return device{priv: priv, id: id}
}

// connect 用真实 Noise 握手跑完一次连接
func (f *fixture) connect(t *testing.T, d device, claimed types.Identity, signedTS uint64, xaddr []byte) (*noise.Initiator, Outcome) {
	t.Helper()
	ts := uint64(f.clock.Now().Unix())

	init, err := noise.NewInitiator(d.priv, signedTS)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	s, out := f.gate.Begin(Request{
		Identity:  claimed,
		Timestamp: ts,
		Handshake: msg1,
		Paths:     []types.Path{{Address: "10.0.0.2:1", Category: types.PathLocal}},
		Observed:  "203.0.113.7:5000",
		XAddr:     xaddr,
	})
	cont, ok := out.(Continue)
	require.True(t, ok, "expected Continue, got %#v", out)

	msg3, err := init.Second(cont.Bytes)
	require.NoError(t, err)
	return init, f.gate.Advance(s, msg3)
}

// ===== 测试 =====

func TestConnect_Done(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	now := uint64(f.clock.Now().Unix())

	init, out := f.connect(t, d, d.id, now, nil)
	done, ok := out.(Done)
	require.True(t, ok, "expected Done, got %#v", out)

	plain, err := init.Open(done.Bytes)
	require.NoError(t, err)
	assert.Equal(t, done.Route, binary.BigEndian.Uint64(plain))
	assert.Zero(t, done.Route%2)
	assert.Nil(t, done.Publication)

	assert.Equal(t, []types.Path{
		{Address: "10.0.0.2:1", Category: types.PathLocal},
		{Address: "198.51.100.1:7443", Category: types.PathBrokerOrigin},
		{Address: "203.0.113.7:5000", Category: types.PathInternet},
	}, done.Paths)

	snap, ok := f.routes.Lookup(d.id)
	require.True(t, ok)
	assert.Equal(t, done.Route, snap.Handle)
	assert.Equal(t, init.Binding(), snap.Meta.Binding)
	assert.Zero(t, f.gate.Sessions())
}

func TestConnect_PublishBearing(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	sub, err := f.ledger.Subscribe(subscription.Origin{}, []types.Filter{types.IdentityFilter{Identity: d.id}})
	require.NoError(t, err)

	_, out := f.connect(t, d, d.id, uint64(f.clock.Now().Unix()), []byte("xaddr"))
	done, ok := out.(Done)
	require.True(t, ok)
	require.NotNil(t, done.Publication)
	assert.Equal(t, done.Route, done.Publication.Route)

	rec, ok := f.ledger.Lookup(d.id)
	require.True(t, ok)
	assert.Equal(t, []byte("xaddr"), rec.XAddr)
	assert.Equal(t, 1, sub.Len())

	// 断开连接撤销发布
	require.True(t, f.routes.Close(done.Route))
	_, ok = f.ledger.Lookup(d.id)
	assert.False(t, ok)
}

func TestBegin_StaleTimestamp(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)

	for _, skew := range []time.Duration{-31 * time.Second, 31 * time.Second} {
		s, out := f.gate.Begin(Request{
			Identity:  d.id,
			Timestamp: uint64(f.clock.Now().Add(skew).Unix()),
		})
		assert.Nil(t, s)
		rej, ok := out.(Rejected)
		require.True(t, ok)
		assert.Equal(t, ReasonStaleTimestamp, rej.Reason)
		assert.ErrorIs(t, rej, ErrStaleTimestamp)
	}

	assert.NoError(t, f.gate.CheckFreshness(uint64(f.clock.Now().Add(30*time.Second).Unix())))
	assert.ErrorIs(t, f.gate.CheckFreshness(1<<63), ErrStaleTimestamp)
}

func TestBegin_IdentityBusy(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	ts := uint64(f.clock.Now().Unix())

	init, err := noise.NewInitiator(d.priv, ts)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	s1, out := f.gate.Begin(Request{Identity: d.id, Timestamp: ts, Handshake: msg1})
	require.IsType(t, Continue{}, out)

	_, out = f.gate.Begin(Request{Identity: d.id, Timestamp: ts, Handshake: msg1})
	rej, ok := out.(Rejected)
	require.True(t, ok)
	assert.Equal(t, ReasonIdentityBusy, rej.Reason)

	// 取消后可以重新开始
	f.gate.Cancel(s1)
	f.gate.Cancel(s1)
	_, out = f.gate.Begin(Request{Identity: d.id, Timestamp: ts, Handshake: msg1})
	assert.IsType(t, Continue{}, out)
}

func TestAdvance_IdentityMismatch(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	signer, claimed := newDevice(t), newDevice(t)

	_, out := f.connect(t, signer, claimed.id, uint64(f.clock.Now().Unix()), nil)
	rej, ok := out.(Rejected)
	require.True(t, ok)
	assert.Equal(t, ReasonHandshakeRejected, rej.Reason)
	assert.ErrorIs(t, rej, security.ErrIdentityMismatch)

	_, found := f.routes.Lookup(claimed.id)
	assert.False(t, found)
	assert.Zero(t, f.routes.Stats().Pending)
}

func TestAdvance_TimestampMismatch(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)

	_, out := f.connect(t, d, d.id, uint64(f.clock.Now().Unix())-5, nil)
	rej, ok := out.(Rejected)
	require.True(t, ok)
	assert.Equal(t, ReasonHandshakeRejected, rej.Reason)
	assert.ErrorIs(t, rej, ErrHandshakeRejected)
}

func TestReap_Timeout(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	ts := uint64(f.clock.Now().Unix())

	init, err := noise.NewInitiator(d.priv, ts)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	s, out := f.gate.Begin(Request{Identity: d.id, Timestamp: ts, Handshake: msg1})
	cont := out.(Continue)

	f.clock.Add(9 * time.Second)
	assert.Zero(t, f.gate.Reap())

	f.clock.Add(time.Second)
	assert.Equal(t, 1, f.gate.Reap())

	select {
	case <-s.Expired():
	default:
		t.Fatal("expected session to be expired")
	}

	msg3, err := init.Second(cont.Bytes)
	require.NoError(t, err)
	rej, ok := f.gate.Advance(s, msg3).(Rejected)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, rej.Reason)
	assert.Zero(t, f.gate.Sessions())
}

func TestReapLoop_UsesClock(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	ts := uint64(f.clock.Now().Unix())

	init, err := noise.NewInitiator(d.priv, ts)
	require.NoError(t, err)
	msg1, err := init.First()
	require.NoError(t, err)

	f.gate.Start()
	defer f.gate.Stop()

	s, _ := f.gate.Begin(Request{Identity: d.id, Timestamp: ts, Handshake: msg1})
	for i := 0; i < 11; i++ {
		f.clock.Add(time.Second)
	}

	select {
	case <-s.Expired():
	case <-time.After(2 * time.Second):
		t.Fatal("session was not reaped")
	}
}

func TestConnect_SecondCompletionSupersedes(t *testing.T) {
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	ts := uint64(f.clock.Now().Unix())

	_, out := f.connect(t, d, d.id, ts, nil)
	first := out.(Done)

	_, out = f.connect(t, d, d.id, ts, nil)
	second := out.(Done)

	select {
	case <-first.Superseded:
	default:
		t.Fatal("first route should be superseded")
	}
	assert.NotEqual(t, first.Route, second.Route)

	snap, ok := f.routes.Lookup(d.id)
	require.True(t, ok)
	assert.Equal(t, second.Route, snap.Handle)

	// 关闭被取代的句柄是空操作
	assert.False(t, f.routes.Close(first.Route))
}

// ===== 协作者失败 =====

type failingCrypto struct{ err error }

func (c failingCrypto) NewResponder() (security.Responder, error) { return nil, c.err }

func TestBegin_CryptoFailureReleasesReservation(t *testing.T) {
	boom := errors.New("boom")
	f := newFixture(t, failingCrypto{err: boom})
	d := newDevice(t)

	_, out := f.gate.Begin(Request{Identity: d.id, Timestamp: uint64(f.clock.Now().Unix())})
	rej, ok := out.(Rejected)
	require.True(t, ok)
	assert.Equal(t, ReasonHandshakeRejected, rej.Reason)
	assert.ErrorIs(t, rej, boom)
	assert.Zero(t, f.routes.Stats().Pending)
}

func TestReason_Strings(t *testing.T) {
	assert.Equal(t, "timeout", ReasonTimeout.String())
	assert.Equal(t, "unknown", Reason(99).String())
	assert.ErrorIs(t, ReasonIdentityBusy.Err(), routetable.ErrIdentityBusy)
}

// sealFailingCrypto 握手正常完成，但加密路由句柄失败
type sealFailingCrypto struct {
	security.Crypto
	err error
}

func (c sealFailingCrypto) NewResponder() (security.Responder, error) {
	r, err := c.Crypto.NewResponder()
	if err != nil {
		return nil, err
	}
	return sealFailingResponder{Responder: r, err: c.err}, nil
}

type sealFailingResponder struct {
	security.Responder
	err error
}

func (r sealFailingResponder) Seal([]byte) ([]byte, error) { return nil, r.err }

func TestComplete_SealFailureLeavesNoStaleRecord(t *testing.T) {
	boom := errors.New("seal failed")
	f := newFixture(t, newNoiseCrypto(t))
	d := newDevice(t)
	ts := uint64(f.clock.Now().Unix())

	_, out := f.connect(t, d, d.id, ts, []byte("old"))
	first := out.(Done)
	require.NotNil(t, first.Publication)

	// 第二次连接携带发布，但最后一步失败
	f.gate.cfg.Crypto = sealFailingCrypto{Crypto: newNoiseCrypto(t), err: boom}
	_, out = f.connect(t, d, d.id, ts, []byte("new"))
	rej, ok := out.(Rejected)
	require.True(t, ok, "expected Rejected, got %#v", out)
	assert.ErrorIs(t, rej, boom)

	select {
	case <-first.Superseded:
	default:
		t.Fatal("first route should be superseded")
	}
	_, ok = f.routes.Lookup(d.id)
	assert.False(t, ok)
	_, ok = f.ledger.Lookup(d.id)
	assert.False(t, ok, "record of the superseded route must not stay live")
	assert.Zero(t, f.ledger.Len())
}
