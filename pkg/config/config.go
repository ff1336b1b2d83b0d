package config

import (
	"fmt"
	"os"
	"time"
)

// Config represents the main configuration for the scene streamer
type Config struct {
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Connection ConnectionConfig `yaml:"connection"`
	Stream     StreamConfig     `yaml:"stream"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Enabled:        true,
			ServiceType:    DefaultServiceType,
			Domain:         DefaultDomain,
			BrowseInterval: 3 * time.Second,
			MissLimit:      3,
		},
		Connection: ConnectionConfig{
			ConnectTimeout: 5 * time.Second,
			DisconnectWait: 2 * time.Second,
			KeepAlive:      15 * time.Second,
		},
		Stream: StreamConfig{
			TargetFPS:            30,
			StreamOnlyWhenActive: false,
			InactivityThreshold:  2 * time.Second,
			ExportTimeout:        5 * time.Second,
			IdleBackoff:          500 * time.Millisecond,
			ScratchDir:           "", // os.TempDir()
			ExportFileName:       "scene_export.usdz",
			MaxPayloadBytes:      256 << 20,
		},
		Gateway: GatewayConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML config file on top of DefaultConfig. Keys missing from the
// file keep their defaults; unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := DecodeStrict(f, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
