package config

import "time"

// StreamConfig contains stream engine configuration
type StreamConfig struct {
	TargetFPS            int           `yaml:"target_fps"`              // 1..60
	StreamOnlyWhenActive bool          `yaml:"stream_only_when_active"` // Skip cycles while the scene is idle
	InactivityThreshold  time.Duration `yaml:"inactivity_threshold"`    // 0.1s..60s
	ExportTimeout        time.Duration `yaml:"export_timeout"`          // Bounded wait for the exclusive executor
	IdleBackoff          time.Duration `yaml:"idle_backoff"`            // Sleep between idle checks
	ScratchDir           string        `yaml:"scratch_dir"`             // Parent of per-cycle scratch dirs, empty for the OS temp dir
	ExportFileName       string        `yaml:"export_file_name"`        // File the exporter writes inside the scratch dir
	MaxPayloadBytes      int64         `yaml:"max_payload_bytes"`       // Largest frame the receiver accepts
}
