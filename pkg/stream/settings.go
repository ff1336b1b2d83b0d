package stream

import "time"

// Settings are the user-tunable stream parameters. They can change while a
// session runs; the loop reads them at the top of every iteration.
type Settings struct {
	TargetFPS            int           `json:"target_fps"`
	StreamOnlyWhenActive bool          `json:"stream_only_when_active"`
	InactivityThreshold  time.Duration `json:"inactivity_threshold"`
}

// Bounds.
const (
	MinFPS       = 1
	MaxFPS       = 60
	DefaultFPS   = 30
	MinThreshold = 100 * time.Millisecond
	MaxThreshold = 60 * time.Second
)

// DefaultSettings are the settings a fresh engine starts with.
func DefaultSettings() Settings {
	return Settings{
		TargetFPS:           DefaultFPS,
		InactivityThreshold: 2 * time.Second,
	}
}

// Normalize clamps every field into its allowed range.
func (s Settings) Normalize() Settings {
	if s.TargetFPS < MinFPS {
		s.TargetFPS = MinFPS
	}
	if s.TargetFPS > MaxFPS {
		s.TargetFPS = MaxFPS
	}
	if s.InactivityThreshold < MinThreshold {
		s.InactivityThreshold = MinThreshold
	}
	if s.InactivityThreshold > MaxThreshold {
		s.InactivityThreshold = MaxThreshold
	}
	return s
}

// FrameInterval is the pacing sleep for the configured frame rate.
func (s Settings) FrameInterval() time.Duration {
	fps := s.TargetFPS
	if fps < MinFPS {
		fps = MinFPS
	}
	return time.Second / time.Duration(fps)
}
