package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/stream"
	"framewire/internal/stream/cipher"
)

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, then validates the result.
//
// An empty path skips the file layer. A non-empty path must exist.
func Load(path string) (*Root, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "failed to parse config file %s", path)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work at runtime.
func (cfg *Root) Validate() error {
	switch cfg.Server.Mode {
	case ModeRelay, ModeEcho:
	default:
		return coreerrors.Newf(coreerrors.CodeConfigError, "unknown server mode %q", cfg.Server.Mode)
	}
	if cfg.Server.MaxSessions <= 0 {
		return coreerrors.Newf(coreerrors.CodeConfigError, "max_sessions must be positive, got %d", cfg.Server.MaxSessions)
	}
	if cfg.Server.WriteRate < 0 {
		return coreerrors.Newf(coreerrors.CodeConfigError, "write_rate must not be negative, got %d", cfg.Server.WriteRate)
	}
	if cfg.Server.IdleTimeout <= 0 || cfg.Server.SweepInterval <= 0 {
		return coreerrors.New(coreerrors.CodeConfigError, "idle_timeout and sweep_interval must be positive")
	}

	// Building the cipher exercises method and key material validation.
	if _, err := cfg.Stream.BuildCipher(); err != nil {
		return err
	}
	return nil
}

// BuildCipher constructs the frame cipher described by this section.
func (s Stream) BuildCipher() (cipher.Cipher, error) {
	ccfg := cipher.Config{Method: cipher.Method(s.Cipher)}
	if s.Key != "" {
		key, err := cipher.DecodeKeyBase64(s.Key)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "invalid stream key")
		}
		ccfg.Key = key
	}
	if s.IV != "" {
		iv, err := cipher.DecodeKeyBase64(s.IV)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "invalid stream IV")
		}
		ccfg.IV = iv
	}
	return cipher.New(ccfg)
}

// BuildOptions constructs the packet stream options described by this section.
func (s Stream) BuildOptions() (*stream.Options, error) {
	c, err := s.BuildCipher()
	if err != nil {
		return nil, err
	}
	return &stream.Options{
		Cipher:               c,
		ReadBufferSize:       s.ReadBufferSize,
		CompressionThreshold: s.CompressionThreshold,
		CompressionLevel:     s.CompressionLevel,
		MaxFrameSize:         s.MaxFrameSize,
	}, nil
}

// LogConfig maps this section onto the logger configuration.
func (l Log) LogConfig() corelog.Config {
	cfg := corelog.Config{
		Level:  l.Level,
		Format: l.Format,
		Output: "stderr",
	}
	if l.File != "" {
		cfg.Output = "file"
		cfg.File = l.File
	}
	return cfg
}

// applyEnv overlays FRAMEWIRE_-prefixed environment variables.
func applyEnv(cfg *Root) {
	loadString("LOG_LEVEL", &cfg.Log.Level)
	loadString("LOG_FORMAT", &cfg.Log.Format)
	loadString("LOG_FILE", &cfg.Log.File)

	loadString("STREAM_CIPHER", &cfg.Stream.Cipher)
	loadString("STREAM_KEY", &cfg.Stream.Key)
	loadString("STREAM_IV", &cfg.Stream.IV)
	loadInt("STREAM_COMPRESSION_LEVEL", &cfg.Stream.CompressionLevel)
	loadInt("STREAM_COMPRESSION_THRESHOLD", &cfg.Stream.CompressionThreshold)
	loadUint32("STREAM_MAX_FRAME_SIZE", &cfg.Stream.MaxFrameSize)
	loadInt("STREAM_READ_BUFFER_SIZE", &cfg.Stream.ReadBufferSize)

	loadBool("SERVER_TCP_ENABLED", &cfg.Server.Protocols.TCP.Enabled)
	loadString("SERVER_TCP_ADDRESS", &cfg.Server.Protocols.TCP.Address)
	loadBool("SERVER_QUIC_ENABLED", &cfg.Server.Protocols.QUIC.Enabled)
	loadString("SERVER_QUIC_ADDRESS", &cfg.Server.Protocols.QUIC.Address)
	loadBool("SERVER_KCP_ENABLED", &cfg.Server.Protocols.KCP.Enabled)
	loadString("SERVER_KCP_ADDRESS", &cfg.Server.Protocols.KCP.Address)
	loadBool("SERVER_WEBSOCKET_ENABLED", &cfg.Server.Protocols.WebSocket.Enabled)
	loadString("SERVER_WEBSOCKET_ADDRESS", &cfg.Server.Protocols.WebSocket.Address)

	loadString("SERVER_MODE", &cfg.Server.Mode)
	loadInt("SERVER_MAX_SESSIONS", &cfg.Server.MaxSessions)
	loadDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	loadDuration("SERVER_SWEEP_INTERVAL", &cfg.Server.SweepInterval)
	loadInt64("SERVER_WRITE_RATE", &cfg.Server.WriteRate)
	loadBool("SERVER_STATUS_ENABLED", &cfg.Server.Status.Enabled)
	loadString("SERVER_STATUS_LISTEN", &cfg.Server.Status.Listen)

	loadString("CLIENT_SERVER", &cfg.Client.Server)
	loadString("CLIENT_PROTOCOL", &cfg.Client.Protocol)
	loadString("CLIENT_NAME", &cfg.Client.Name)
	loadDuration("CLIENT_PING_INTERVAL", &cfg.Client.PingInterval)
	loadDuration("CLIENT_CONNECT_TIMEOUT", &cfg.Client.ConnectTimeout)
}

func getEnv(key string) (string, bool) {
	if v := os.Getenv(EnvPrefix + "_" + key); v != "" {
		return v, true
	}
	return "", false
}

func loadString(key string, target *string) {
	if v, ok := getEnv(key); ok {
		*target = v
	}
}

func loadBool(key string, target *bool) {
	if v, ok := getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func loadInt(key string, target *int) {
	if v, ok := getEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

func loadInt64(key string, target *int64) {
	if v, ok := getEnv(key); ok {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = i
		}
	}
}

func loadUint32(key string, target *uint32) {
	if v, ok := getEnv(key); ok {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			*target = uint32(i)
		}
	}
}

func loadDuration(key string, target *time.Duration) {
	if v, ok := getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}
