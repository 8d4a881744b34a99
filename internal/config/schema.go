// Package config defines the configuration schema and the layered loader.
//
// Values are resolved in priority order: built-in defaults, then the YAML
// file, then FRAMEWIRE_-prefixed environment variables. Later sources win.
package config

import (
	"time"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "FRAMEWIRE"

// Root is the top-level configuration.
type Root struct {
	Log    Log    `yaml:"log"`
	Stream Stream `yaml:"stream"`
	Server Server `yaml:"server"`
	Client Client `yaml:"client"`
}

// Log configures the process-wide logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // append to this file in addition to stderr
}

// Stream configures the frame codec shared by server and client.
// Both ends of a connection must agree on cipher and key material.
type Stream struct {
	Cipher               string `yaml:"cipher"`                // aes-cbc, xchacha20-poly1305
	Key                  string `yaml:"key"`                   // base64; empty uses the built-in key
	IV                   string `yaml:"iv"`                    // base64; aes-cbc only
	CompressionLevel     int    `yaml:"compression_level"`     // gzip level 1-9, 0 = default
	CompressionThreshold int    `yaml:"compression_threshold"` // bytes; negative disables compression
	MaxFrameSize         uint32 `yaml:"max_frame_size"`        // encrypted body cap, 0 = protocol max
	ReadBufferSize       int    `yaml:"read_buffer_size"`
}

// ProtocolListener configures one transport listener.
type ProtocolListener struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Protocols holds one listener per supported transport.
type Protocols struct {
	TCP       ProtocolListener `yaml:"tcp"`
	QUIC      ProtocolListener `yaml:"quic"`
	KCP       ProtocolListener `yaml:"kcp"`
	WebSocket ProtocolListener `yaml:"websocket"`
}

// Server configures the relay server.
type Server struct {
	Protocols     Protocols     `yaml:"protocols"`
	Mode          string        `yaml:"mode"`           // relay, echo
	MaxSessions   int           `yaml:"max_sessions"`   // registry capacity; oldest evicted beyond it
	IdleTimeout   time.Duration `yaml:"idle_timeout"`   // sessions silent longer than this expire
	SweepInterval time.Duration `yaml:"sweep_interval"` // idle sweeper period
	WriteRate     int64         `yaml:"write_rate"`     // bytes/sec per session, 0 = unlimited
	Status        Status        `yaml:"status"`
}

// Status configures the HTTP status endpoint.
type Status struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Client configures the relay client.
type Client struct {
	Server         string        `yaml:"server"`   // relay server address
	Protocol       string        `yaml:"protocol"` // tcp, quic, kcp, websocket
	Name           string        `yaml:"name"`     // display name announced in the hello frame
	PingInterval   time.Duration `yaml:"ping_interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Server relay modes.
const (
	ModeRelay = "relay" // forward text frames to every other session
	ModeEcho  = "echo"  // send text frames back to their origin
)

// Default returns the built-in configuration.
func Default() *Root {
	cfg := &Root{}

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Stream.Cipher = "aes-cbc"
	cfg.Stream.CompressionLevel = 6
	cfg.Stream.CompressionThreshold = 200
	cfg.Stream.ReadBufferSize = 512

	cfg.Server.Protocols.TCP.Enabled = true
	cfg.Server.Protocols.TCP.Address = "0.0.0.0:7000"
	cfg.Server.Protocols.QUIC.Address = "0.0.0.0:7443"
	cfg.Server.Protocols.KCP.Address = "0.0.0.0:7001"
	cfg.Server.Protocols.WebSocket.Address = "0.0.0.0:7080"
	cfg.Server.Mode = ModeRelay
	cfg.Server.MaxSessions = 1024
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.SweepInterval = 15 * time.Second
	cfg.Server.Status.Enabled = true
	cfg.Server.Status.Listen = "127.0.0.1:7900"

	cfg.Client.Server = "127.0.0.1:7000"
	cfg.Client.Protocol = "tcp"
	cfg.Client.PingInterval = 20 * time.Second
	cfg.Client.ConnectTimeout = 10 * time.Second

	return cfg
}

// EnabledListeners returns (protocol, address) pairs for every enabled listener.
func (p Protocols) EnabledListeners() map[string]string {
	out := make(map[string]string)
	if p.TCP.Enabled {
		out["tcp"] = p.TCP.Address
	}
	if p.QUIC.Enabled {
		out["quic"] = p.QUIC.Address
	}
	if p.KCP.Enabled {
		out["kcp"] = p.KCP.Address
	}
	if p.WebSocket.Enabled {
		out["websocket"] = p.WebSocket.Address
	}
	return out
}

// Lookup returns the listener section for a protocol name.
func (p Protocols) Lookup(proto string) (ProtocolListener, bool) {
	switch proto {
	case "tcp":
		return p.TCP, true
	case "quic":
		return p.QUIC, true
	case "kcp":
		return p.KCP, true
	case "websocket":
		return p.WebSocket, true
	default:
		return ProtocolListener{}, false
	}
}
