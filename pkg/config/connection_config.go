package config

import "time"

// ConnectionConfig contains stream socket configuration
type ConnectionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // Dial timeout
	DisconnectWait time.Duration `yaml:"disconnect_wait"` // Bounded wait for the stream session on disconnect
	KeepAlive      time.Duration `yaml:"keep_alive"`      // TCP keep-alive period, negative disables
}
