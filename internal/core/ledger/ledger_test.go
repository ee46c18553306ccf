package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/core/routetable"
	"github.com/dep2p/go-carrier/internal/core/subscription"
	"github.com/dep2p/go-carrier/pkg/types"
)

func testIdentity(b byte) types.Identity {
	var id types.Identity
	id[0] = b
	id[1] = 0x5a
	return id
}

func subscribe(t *testing.T, l *Ledger, o subscription.Origin, filters []types.Filter) *subscription.Subscription {
	t.Helper()
	sub, err := l.Subscribe(o, filters)
	require.NoError(t, err)
	return sub
}

func drain(t *testing.T, s *subscription.Subscription) []types.ChangeEvent {
	t.Helper()
	var out []types.ChangeEvent
	for s.Len() > 0 {
		ev, err := s.Next(context.Background())
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPublish_SupersedesPreviousOwner(t *testing.T) {
	l := New(Config{Stripes: 4})
	k := testIdentity(1)
	sub := subscribe(t, l, subscription.Origin{Identity: testIdentity(9)}, []types.Filter{types.IdentityFilter{Identity: k}})

	first := l.Publish(k, []byte("a1"), nil, 2)
	assert.Equal(t, []types.ChangeEvent{types.PublishEvent{Identity: k, XAddr: []byte("a1")}}, drain(t, sub))

	second := l.Publish(k, []byte("a2"), nil, 4)
	assert.True(t, isClosed(first.Superseded()))
	assert.True(t, isClosed(first.Done()))
	assert.False(t, isClosed(second.Done()))
	assert.Equal(t, []types.ChangeEvent{types.PublishEvent{Identity: k, XAddr: []byte("a2")}}, drain(t, sub))

	rec, ok := l.Lookup(k)
	require.True(t, ok)
	assert.Equal(t, []byte("a2"), rec.XAddr)
	assert.Equal(t, uint64(4), rec.Route)
	assert.Equal(t, 1, l.Len())
}

func TestWithdraw_StaleIsNoop(t *testing.T) {
	l := New(Config{})
	k := testIdentity(1)
	sub := subscribe(t, l, subscription.Origin{}, []types.Filter{types.ImmediateFilter{}})

	first := l.Publish(k, []byte("a1"), nil, 0)
	second := l.Publish(k, []byte("a2"), nil, 0)
	drain(t, sub)

	assert.False(t, l.Withdraw(first))
	assert.Zero(t, sub.Len())

	assert.True(t, first.WasSuperseded())
	assert.True(t, l.Withdraw(second))
	assert.False(t, isClosed(second.Superseded()))
	assert.True(t, isClosed(second.Done()))
	assert.False(t, second.WasSuperseded())
	assert.Equal(t, []types.ChangeEvent{types.UnpublishEvent{Identity: k}}, drain(t, sub))

	assert.False(t, l.Withdraw(second))
	assert.False(t, l.Withdraw(nil))
}

func TestUnpublish(t *testing.T) {
	l := New(Config{})
	k := testIdentity(1)
	sub := subscribe(t, l, subscription.Origin{}, []types.Filter{types.ImmediateFilter{}})

	assert.False(t, l.Unpublish(k))
	l.Publish(k, []byte("x"), nil, 0)
	assert.True(t, l.Unpublish(k))
	assert.Equal(t, []types.ChangeEvent{
		types.PublishEvent{Identity: k, XAddr: []byte("x")},
		types.UnpublishEvent{Identity: k},
	}, drain(t, sub))

	_, ok := l.Lookup(k)
	assert.False(t, ok)
}

func TestSubscribe_ReplaysCurrentRecords(t *testing.T) {
	l := New(Config{})
	a, b := testIdentity(1), testIdentity(2)
	l.Publish(a, []byte("a"), nil, 0)
	l.Publish(b, []byte("b"), nil, 0)

	sub := subscribe(t, l, subscription.Origin{}, []types.Filter{types.IdentityFilter{Identity: b}})
	assert.Equal(t, []types.ChangeEvent{types.PublishEvent{Identity: b, XAddr: []byte("b")}}, drain(t, sub))

	all := subscribe(t, l, subscription.Origin{Shadow: "x"}, []types.Filter{types.ImmediateFilter{}})
	assert.Len(t, drain(t, all), 2)
}

func TestRouteListener(t *testing.T) {
	tbl := routetable.New(routetable.Config{})
	l := New(Config{})
	cancel := tbl.Subscribe(l)
	defer cancel()

	k := testIdentity(1)
	sub := subscribe(t, l, subscription.Origin{}, []types.Filter{types.ImmediateFilter{}})

	open := func(meta routetable.Meta) uint64 {
		r, err := tbl.Open(k, nil)
		require.NoError(t, err)
		require.True(t, r.SetMeta(meta))
		h, err := tbl.Complete(r, nil)
		require.NoError(t, err)
		return h
	}

	// 关闭路由撤销绑定的记录
	h1 := open(routetable.Meta{})
	p1 := l.Publish(k, []byte("a1"), nil, h1)
	require.True(t, tbl.Close(h1))
	assert.True(t, isClosed(p1.Done()))
	assert.False(t, isClosed(p1.Superseded()))
	assert.Equal(t, []types.ChangeEvent{
		types.PublishEvent{Identity: k, XAddr: []byte("a1")},
		types.UnpublishEvent{Identity: k},
	}, drain(t, sub))

	// 不带发布的新路由取代旧路由时，旧路由上的记录被取代
	h2 := open(routetable.Meta{})
	p2 := l.Publish(k, []byte("a2"), nil, h2)
	open(routetable.Meta{})
	assert.True(t, isClosed(p2.Superseded()))
	assert.Equal(t, []types.ChangeEvent{
		types.PublishEvent{Identity: k, XAddr: []byte("a2")},
		types.UnpublishEvent{Identity: k},
	}, drain(t, sub))

	// 带发布的新路由：没有多余的 Unpublish，由 Publish 直接取代
	h4 := open(routetable.Meta{})
	p4 := l.Publish(k, []byte("a4"), nil, h4)
	h5 := open(routetable.Meta{XAddr: []byte("a5")})
	assert.False(t, isClosed(p4.Done()))
	l.Publish(k, []byte("a5"), nil, h5)
	assert.True(t, isClosed(p4.Superseded()))
	assert.Equal(t, []types.ChangeEvent{
		types.PublishEvent{Identity: k, XAddr: []byte("a4")},
		types.PublishEvent{Identity: k, XAddr: []byte("a5")},
	}, drain(t, sub))
}

func TestSubscribe_UnknownFilterRejected(t *testing.T) {
	l := New(Config{})
	l.Publish(testIdentity(1), []byte("a1"), nil, 0)

	sub, err := l.Subscribe(subscription.Origin{}, []types.Filter{nil})
	assert.ErrorIs(t, err, subscription.ErrUnknownFilter)
	assert.Nil(t, sub)
	assert.Zero(t, l.Index().Len())
}
