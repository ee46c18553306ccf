package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/internal/util/logger"
	"github.com/dep2p/go-carrier/pkg/types"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, ValidateAll(cfg))
	assert.Error(t, ValidateAll(nil))
}

// TestTransportConfig 测试传输配置
func TestTransportConfig(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		cfg := DefaultTransportConfig()
		assert.True(t, cfg.EnableQUIC)
		assert.False(t, cfg.EnableTCP)
		assert.Equal(t, 64<<10, cfg.MaxFrameSize)
	})

	t.Run("Validate_NoTransport", func(t *testing.T) {
		cfg := DefaultTransportConfig().WithQUIC(false).WithTCP(false)
		assert.Error(t, cfg.Validate())
	})

	t.Run("Advertise", func(t *testing.T) {
		cfg := DefaultTransportConfig()
		assert.Equal(t, cfg.QUICListen, cfg.Advertise())
		cfg.AdvertiseAddr = "broker.example.com:7443"
		assert.Equal(t, "broker.example.com:7443", cfg.Advertise())
	})
}

// TestHandshakeConfig 测试握手配置
func TestHandshakeConfig(t *testing.T) {
	cfg := DefaultHandshakeConfig()
	assert.Equal(t, 30*time.Second, cfg.FreshnessWindow.Duration())
	assert.Equal(t, 10*time.Second, cfg.Timeout.Duration())

	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

// TestRoutesConfig 测试分片配置
func TestRoutesConfig(t *testing.T) {
	tests := []struct {
		name    string
		stripes int
		wantErr bool
	}{
		{"默认 64", 64, false},
		{"1 个分片", 1, false},
		{"非 2 的幂", 48, true},
		{"零", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := DefaultRoutesConfig()
			rc.Stripes = tt.stripes
			sc := DefaultSubscriptionsConfig()
			sc.Stripes = tt.stripes
			if tt.wantErr {
				assert.Error(t, rc.Validate())
				assert.Error(t, sc.Validate())
			} else {
				assert.NoError(t, rc.Validate())
				assert.NoError(t, sc.Validate())
			}
		})
	}
}

// TestFederationConfig 测试联邦配置
func TestFederationConfig(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := types.IdentityFromPublicKey(pub)
	require.NoError(t, err)

	cfg := DefaultFederationConfig()
	cfg.Peers = []PeerBroker{{Identity: id.String(), Addr: "10.0.0.2:7443"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, map[types.Identity]string{id: "10.0.0.2:7443"}, cfg.PeerIdentities())

	cfg.Peers[0].Identity = "not-base58-0OIl"
	assert.Error(t, cfg.Validate())

	cfg.Peers[0] = PeerBroker{Identity: id.String()}
	assert.Error(t, cfg.Validate())
}

// TestStorageConfig 测试存储配置
func TestStorageConfig(t *testing.T) {
	cfg := DefaultStorageConfig()
	assert.False(t, cfg.Durable())
	cfg.DataDir = "/var/lib/carrier"
	assert.True(t, cfg.Durable())
	assert.Equal(t, filepath.Join("/var/lib/carrier", "handles.db"), cfg.DBPath())

	cfg.HandleBlock = 0
	assert.Error(t, cfg.Validate())
}

// TestFromJSON 测试 JSON 加载
func TestLogConfig(t *testing.T) {
	assert.NoError(t, DefaultLogConfig().Validate())
	assert.NoError(t, LogConfig{Level: "gate=debug,info", Format: "json"}.Validate())
	assert.ErrorIs(t, LogConfig{Level: "gate=chatty"}.Validate(), logger.ErrInvalidLevel)
	assert.ErrorIs(t, LogConfig{Format: "xml"}.Validate(), logger.ErrInvalidFormat)

	cfg := NewConfig()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"handshake": {"freshness_window": "45s"},
		"transport": {"advertise_addr": "b.example:7443"},
		"subscriptions": {"max_queue": 128}
	}`)
	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Handshake.FreshnessWindow.Duration())
	assert.Equal(t, "b.example:7443", cfg.Transport.AdvertiseAddr)
	assert.Equal(t, 128, cfg.Subscriptions.MaxQueue)
	// 未指定字段保留默认值
	assert.Equal(t, 10*time.Second, cfg.Handshake.Timeout.Duration())
	assert.True(t, cfg.Transport.EnableQUIC)

	_, err = FromJSON([]byte(`{"handshake": {"timeout": "soon"}}`))
	assert.Error(t, err)
}

// TestSaveLoadFile 测试文件读写
func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "broker.json")

	cfg := NewConfig()
	cfg.Limits.ConnectRate = 2.5
	cfg.Federation.Peers = []PeerBroker{{Identity: "x", Addr: "y"}}
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TestCloneConfig 测试配置克隆
func TestCloneConfig(t *testing.T) {
	assert.Nil(t, CloneConfig(nil))

	cfg := NewConfig()
	cfg.Federation.Peers = []PeerBroker{{Identity: "a", Addr: "b"}}
	cloned := CloneConfig(cfg)
	cloned.Federation.Peers[0].Addr = "changed"
	cloned.Transport.QUICListen = "changed"

	assert.Equal(t, "b", cfg.Federation.Peers[0].Addr)
	assert.NotEqual(t, "changed", cfg.Transport.QUICListen)
}

// TestDurations 测试 Duration JSON 编解码
func TestDurations(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	// 数字按秒解析
	require.NoError(t, d.UnmarshalJSON([]byte(`30`)))
	assert.Equal(t, 30*time.Second, d.Duration())
	require.NoError(t, d.UnmarshalJSON([]byte(`1.5`)))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	assert.ErrorIs(t, d.UnmarshalJSON([]byte(`"-1s"`)), ErrNegativeDuration)
	assert.ErrorIs(t, d.UnmarshalJSON([]byte(`-2`)), ErrNegativeDuration)

	out, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
