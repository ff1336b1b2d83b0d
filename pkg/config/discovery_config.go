package config

import "time"

const (
	// DefaultServiceType is the DNS-SD service type advertised by headset receivers.
	DefaultServiceType = "_visionpro_blender._tcp"
	// DefaultDomain is the DNS-SD browse domain.
	DefaultDomain = "local."
)

// DiscoveryConfig contains LAN service discovery configuration
type DiscoveryConfig struct {
	Enabled        bool          `yaml:"enabled"`         // Start discovery with the service
	ServiceType    string        `yaml:"service_type"`    // DNS-SD service type
	Domain         string        `yaml:"domain"`          // DNS-SD domain
	BrowseInterval time.Duration `yaml:"browse_interval"` // Length of one browse round
	MissLimit      int           `yaml:"miss_limit"`      // Rounds a peer may be absent before it is removed
}
