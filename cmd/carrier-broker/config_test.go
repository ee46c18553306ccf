package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/config"
)

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers(" a@1.2.3.4:7443, b@host:1 ,")
	require.NoError(t, err)
	assert.Equal(t, []config.PeerBroker{
		{Identity: "a", Addr: "1.2.3.4:7443"},
		{Identity: "b", Addr: "host:1"},
	}, peers)

	for _, bad := range []string{"nohost", "@addr", "id@"} {
		_, err := parsePeers(bad)
		assert.Error(t, err, bad)
	}
}

func TestOverrides_FlagsOverEnv(t *testing.T) {
	cfg := config.NewConfig()
	env := map[string]string{
		"CARRIER_KEY_FILE":     "/env.key",
		"CARRIER_TCP_LISTEN":   "0.0.0.0:9000",
		"CARRIER_METRICS_ADDR": "127.0.0.1:9999",
	}
	require.NoError(t, applyEnvOverrides(cfg, func(k string) string { return env[k] }))
	assert.Equal(t, "/env.key", cfg.Identity.KeyFile)
	assert.True(t, cfg.Transport.EnableTCP)
	assert.True(t, cfg.Metrics.Enabled)

	require.NoError(t, flagOverrides{keyFile: "/flag.key", advertise: "b.example:7443"}.apply(cfg))
	assert.Equal(t, "/flag.key", cfg.Identity.KeyFile)
	assert.Equal(t, "b.example:7443", cfg.Transport.AdvertiseAddr)
	assert.Equal(t, "0.0.0.0:9000", cfg.Transport.TCPListen)

	env["CARRIER_LOG_LEVEL"] = "gate=debug,info"
	require.NoError(t, applyEnvOverrides(cfg, func(k string) string { return env[k] }))
	require.NoError(t, flagOverrides{logFormat: "json"}.apply(cfg))
	assert.Equal(t, config.LogConfig{Level: "gate=debug,info", Format: "json"}, cfg.Log)

	assert.Error(t, flagOverrides{peers: "broken"}.apply(cfg))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.json")
	require.NoError(t, writeDefaultConfig(path))
	assert.Error(t, writeDefaultConfig(path))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig().Transport, cfg.Transport)
}
