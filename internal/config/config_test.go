package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "framewire/internal/core/errors"
)

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "aes-cbc", cfg.Stream.Cipher)
	assert.Equal(t, ModeRelay, cfg.Server.Mode)
	assert.True(t, cfg.Server.Protocols.TCP.Enabled)
	assert.False(t, cfg.Server.Protocols.QUIC.Enabled)
	assert.False(t, cfg.Server.Protocols.KCP.Enabled)
	assert.False(t, cfg.Server.Protocols.WebSocket.Enabled)

	require.NoError(t, cfg.Validate())

	listeners := cfg.Server.Protocols.EnabledListeners()
	require.Len(t, listeners, 1)
	assert.Equal(t, "0.0.0.0:7000", listeners["tcp"])
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
stream:
  compression_threshold: 512
  max_frame_size: 65536
server:
  mode: echo
  max_sessions: 16
  protocols:
    tcp:
      address: "127.0.0.1:9000"
    websocket:
      enabled: true
      address: "127.0.0.1:9080"
  status:
    enabled: false
client:
  server: "relay.example.com:9000"
  name: "probe"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 512, cfg.Stream.CompressionThreshold)
	assert.Equal(t, uint32(65536), cfg.Stream.MaxFrameSize)
	assert.Equal(t, ModeEcho, cfg.Server.Mode)
	assert.Equal(t, 16, cfg.Server.MaxSessions)
	assert.False(t, cfg.Server.Status.Enabled)
	assert.Equal(t, "relay.example.com:9000", cfg.Client.Server)
	assert.Equal(t, "probe", cfg.Client.Name)

	// 未出现的字段保留默认值
	assert.Equal(t, "aes-cbc", cfg.Stream.Cipher)
	assert.True(t, cfg.Server.Protocols.TCP.Enabled)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Protocols.TCP.Address)

	listeners := cfg.Server.Protocols.EnabledListeners()
	require.Len(t, listeners, 2)
	assert.Equal(t, "127.0.0.1:9080", listeners["websocket"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FRAMEWIRE_SERVER_MODE", "echo")
	t.Setenv("FRAMEWIRE_SERVER_MAX_SESSIONS", "4")
	t.Setenv("FRAMEWIRE_SERVER_IDLE_TIMEOUT", "90s")
	t.Setenv("FRAMEWIRE_SERVER_TCP_ENABLED", "false")
	t.Setenv("FRAMEWIRE_STREAM_MAX_FRAME_SIZE", "2048")
	t.Setenv("FRAMEWIRE_CLIENT_PROTOCOL", "websocket")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeEcho, cfg.Server.Mode)
	assert.Equal(t, 4, cfg.Server.MaxSessions)
	assert.Equal(t, 90*time.Second, cfg.Server.IdleTimeout)
	assert.False(t, cfg.Server.Protocols.TCP.Enabled)
	assert.Equal(t, uint32(2048), cfg.Stream.MaxFrameSize)
	assert.Equal(t, "websocket", cfg.Client.Protocol)
	assert.Empty(t, cfg.Server.Protocols.EnabledListeners())
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  mode: relay\n"), 0644))
	t.Setenv("FRAMEWIRE_SERVER_MODE", "echo")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeEcho, cfg.Server.Mode)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Root)
	}{
		{"unknown mode", func(c *Root) { c.Server.Mode = "broadcast" }},
		{"zero sessions", func(c *Root) { c.Server.MaxSessions = 0 }},
		{"negative write rate", func(c *Root) { c.Server.WriteRate = -1 }},
		{"zero idle timeout", func(c *Root) { c.Server.IdleTimeout = 0 }},
		{"unknown cipher", func(c *Root) { c.Stream.Cipher = "rot13" }},
		{"short key", func(c *Root) { c.Stream.Key = base64.StdEncoding.EncodeToString([]byte("short")) }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError), "got %v", err)
		})
	}
}

func TestStream_BuildOptions(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 16)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range iv {
		iv[i] = byte(0xF0 - i)
	}

	s := Default().Stream
	s.Key = base64.StdEncoding.EncodeToString(key)
	s.IV = base64.StdEncoding.EncodeToString(iv)
	s.MaxFrameSize = 4096
	s.CompressionThreshold = 300

	opts, err := s.BuildOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Cipher)
	assert.Equal(t, uint32(4096), opts.MaxFrameSize)
	assert.Equal(t, 300, opts.CompressionThreshold)
	assert.Equal(t, s.CompressionLevel, opts.CompressionLevel)

	s.Key = "%%% not base64 %%%"
	_, err = s.BuildOptions()
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

func TestLog_LogConfig(t *testing.T) {
	l := Log{Level: "warn", Format: "json"}
	cfg := l.LogConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "stderr", cfg.Output)

	l.File = "/var/log/framewire.log"
	cfg = l.LogConfig()
	assert.Equal(t, "file", cfg.Output)
	assert.Equal(t, "/var/log/framewire.log", cfg.File)
}
