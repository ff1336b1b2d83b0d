package config

// GatewayConfig contains the local control/status HTTP gateway configuration
type GatewayConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Enable HTTP gateway
	ListenAddr string `yaml:"listen_addr"` // Address to listen on (e.g., "127.0.0.1:8787")
}
