package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	carrier "github.com/dep2p/go-carrier"
	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/app"
	"github.com/dep2p/go-carrier/pkg/types"
)

func TestDispatch_Usage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "subscribe")

	assert.Error(t, dispatch(context.Background(), []string{"nope"}, &out))
}

func TestKeygenAndID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")

	var gen bytes.Buffer
	require.NoError(t, dispatch(context.Background(), []string{"keygen", "-out", path}, &gen))
	assert.Error(t, dispatch(context.Background(), []string{"keygen", "-out", path}, &gen))

	var id bytes.Buffer
	require.NoError(t, dispatch(context.Background(), []string{"id", "-key", path}, &id))
	assert.Equal(t, strings.TrimSpace(gen.String()), strings.TrimSpace(id.String()))
}

func TestParseFilters(t *testing.T) {
	k, err := carrier.GenerateKey()
	require.NoError(t, err)

	filters, err := parseFilters("")
	require.NoError(t, err)
	assert.Empty(t, filters)

	filters, err = parseFilters(" " + k.ID().String() + " ,")
	require.NoError(t, err)
	assert.Equal(t, []types.Filter{types.IdentityFilter{Identity: k.ID()}}, filters)

	_, err = parseFilters("not-an-identity")
	assert.Error(t, err)
}

func TestPublishRequiresFlags(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, dispatch(context.Background(), []string{"publish", "-xaddr", "x"}, &out))
	assert.Error(t, dispatch(context.Background(), []string{"publish", "-broker", "h:1", "-broker-id", "x"}, &out))
}

func TestResolve_AgainstBroker(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Identity.KeyFile = filepath.Join(t.TempDir(), "broker.key")
	cfg.Transport.QUICListen = "127.0.0.1:0"
	rt, err := app.NewBootstrap(cfg).Start(context.Background())
	require.NoError(t, err)
	defer rt.Stop(context.Background())
	addr := rt.Addrs()[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dev, err := carrier.GenerateKey()
	require.NoError(t, err)
	c, err := carrier.Dial(ctx, addr, rt.Identity.ID(), carrier.WithIdentity(dev))
	require.NoError(t, err)
	defer c.Close()
	route, err := c.Connect(ctx)
	require.NoError(t, err)

	args := []string{"resolve",
		"-key", filepath.Join(t.TempDir(), "cli.key"),
		"-broker", addr,
		"-broker-id", rt.Identity.ID().String(),
		dev.ID().String(),
	}
	var out bytes.Buffer
	require.NoError(t, dispatch(ctx, args, &out))
	assert.Contains(t, out.String(), "route="+strconv.FormatUint(route.Handle, 10))
}
