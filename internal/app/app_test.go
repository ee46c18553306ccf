package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-carrier/config"
	"github.com/dep2p/go-carrier/internal/core/identity"
	"github.com/dep2p/go-carrier/internal/util/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Identity.KeyFile = filepath.Join(t.TempDir(), "broker.key")
	cfg.Transport.QUICListen = "127.0.0.1:0"
	cfg.Transport.EnableTCP = true
	cfg.Transport.TCPListen = "127.0.0.1:0"
	cfg.Transport.AdvertiseAddr = "127.0.0.1:7443"
	return cfg
}

func TestAllModules_Validate(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(testConfig(t)),
		AllModules(),
		fx.WithLogger(logger.FxEventLogger),
	)
	assert.NoError(t, err)
}

func TestAllModules_Lifecycle(t *testing.T) {
	var id *identity.Identity
	app := fxtest.New(t,
		fx.Supply(testConfig(t)),
		AllModules(),
		fx.WithLogger(logger.FxEventLogger),
		fx.Populate(&id),
	)
	app.RequireStart()
	require.NotNil(t, id)
	app.RequireStop()
}

func TestBootstrap_StartStop(t *testing.T) {
	cfg := testConfig(t)
	b := NewBootstrap(cfg, WithStartTimeout(10*time.Second))

	rt, err := b.Start(context.Background())
	require.NoError(t, err)
	assert.Len(t, rt.Addrs(), 2)
	assert.NotNil(t, rt.Federator)
	assert.Nil(t, rt.Metrics)

	// 密钥已落盘，第二次加载得到同一身份
	loaded, err := identity.Load(cfg.Identity.KeyFile)
	require.NoError(t, err)
	assert.Equal(t, rt.Identity.ID(), loaded.ID())

	require.NoError(t, rt.Stop(context.Background()))
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.EnableQUIC = false
	cfg.Transport.EnableTCP = false

	_, err := NewBootstrap(cfg).Start(context.Background())
	assert.Error(t, err)
}

func TestRunApp_StopEndsWait(t *testing.T) {
	a, err := RunApp(context.Background(), NewBootstrap(testConfig(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Wait did not return")
	}
	assert.NoError(t, a.Stop())
}
