package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	a := testIdentity(t)
	b := testIdentity(t)

	assert.True(t, ImmediateFilter{}.Matches(a))
	assert.True(t, ImmediateFilter{}.Matches(b))

	f := IdentityFilter{Identity: a}
	assert.True(t, f.Matches(a))
	assert.False(t, f.Matches(b))
}

func TestEventIdentity(t *testing.T) {
	a := testIdentity(t)

	id, ok := EventIdentity(PublishEvent{Identity: a, XAddr: []byte("x")})
	assert.True(t, ok)
	assert.Equal(t, a, id)

	id, ok = EventIdentity(UnpublishEvent{Identity: a})
	assert.True(t, ok)
	assert.Equal(t, a, id)

	_, ok = EventIdentity(SupersedeEvent{})
	assert.False(t, ok)
}

func TestPathCategory_String(t *testing.T) {
	assert.Equal(t, "local", PathLocal.String())
	assert.Equal(t, "internet", PathInternet.String())
	assert.Equal(t, "broker-origin", PathBrokerOrigin.String())
	assert.Equal(t, "invalid", PathInvalid.String())
	assert.Equal(t, "category(9)", PathCategory(9).String())
	assert.False(t, PathInvalid.IsValid())
	assert.True(t, PathBrokerOrigin.IsValid())
}
