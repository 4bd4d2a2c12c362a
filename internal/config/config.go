// Package config loads selium.toml, the broker's on-disk configuration file,
// via the same struct-tag/DecodeFile shape and generated-file-with-comments
// style used elsewhere for BurntSushi/toml-based config.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Server holds the listener and transport settings.
type Server struct {
	// Listen is the UDP address the QUIC listener binds, e.g. ":7001".
	Listen string `toml:"listen"`
	// CertFile/KeyFile are the server's TLS certificate and key (PEM).
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	// MaxFrameSize caps a single wire frame's length; 0 selects
	// wire.DefaultMaxFrameSize.
	MaxFrameSize uint32 `toml:"max_frame_size"`
	// SubscriberTimeoutMS is the per-send timeout before a subscriber is
	// judged slow and evicted; 0 selects broker.DefaultSubscriberTimeout.
	SubscriberTimeoutMS uint32 `toml:"subscriber_timeout_ms"`
	// DrainTimeoutMS bounds how long graceful shutdown waits for in-flight
	// publisher/subscriber BiStreams to finish after being signalled
	// closed; 0 selects broker.DefaultDrainTimeout.
	DrainTimeoutMS uint32 `toml:"drain_timeout_ms"`
}

// Logging holds the structured-logging backend settings.
type Logging struct {
	// Level is one of DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL.
	Level    string `toml:"level"`
	Disabled bool   `toml:"disabled"`
}

// Metrics holds the Prometheus /metrics endpoint settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Config is the full content of selium.toml.
type Config struct {
	Server  Server  `toml:"Server"`
	Logging Logging `toml:"Logging"`
	Metrics Metrics `toml:"Metrics"`
}

// Load reads and parses a selium.toml file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

const defaultTemplate = `# selium.toml - broker configuration

[Server]
listen = %q
cert_file = %q
key_file = %q
max_frame_size = %d
subscriber_timeout_ms = %d
drain_timeout_ms = %d

[Logging]
level = %q
disabled = false

[Metrics]
enabled = true
listen = %q
`

// GenerateDefault writes a commented starter selium.toml to path, for a
// freshly provisioned broker.
func GenerateDefault(path string) error {
	content := fmt.Sprintf(defaultTemplate,
		":7001",
		"server.crt",
		"server.key",
		16<<20,
		5000,
		30000,
		"INFO",
		":9090",
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
