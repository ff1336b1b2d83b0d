package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "stream.target_fps"
	Message string // e.g., "must be between 1 and 60"
	Hint    string // e.g., "higher rates only queue exports behind each other"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Bounds for stream settings.
const (
	MinTargetFPS           = 1
	MaxTargetFPS           = 60
	MinInactivityThreshold = 100 * time.Millisecond
	MaxInactivityThreshold = 60 * time.Second
)

// Validate performs comprehensive validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateDiscovery()...)
	errs = append(errs, c.validateConnection()...)
	errs = append(errs, c.validateStream()...)
	errs = append(errs, c.validateGateway()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateDiscovery() []error {
	var errs []error
	disc := c.Discovery

	if !strings.HasPrefix(disc.ServiceType, "_") || !strings.HasSuffix(disc.ServiceType, "._tcp") {
		errs = append(errs, ValidationError{
			Path:    "discovery.service_type",
			Message: fmt.Sprintf("invalid service type %q", disc.ServiceType),
			Hint:    "expected _<name>._tcp, e.g. " + DefaultServiceType,
		})
	}

	if disc.Domain == "" {
		errs = append(errs, ValidationError{
			Path:    "discovery.domain",
			Message: "must not be empty",
			Hint:    "use " + DefaultDomain + " for the link-local domain",
		})
	}

	if disc.BrowseInterval < 500*time.Millisecond {
		errs = append(errs, ValidationError{
			Path:    "discovery.browse_interval",
			Message: fmt.Sprintf("must be at least 500ms; got %v", disc.BrowseInterval),
		})
	}

	if disc.MissLimit < 1 {
		errs = append(errs, ValidationError{
			Path:    "discovery.miss_limit",
			Message: fmt.Sprintf("must be >= 1; got %d", disc.MissLimit),
		})
	}

	return errs
}

func (c *Config) validateConnection() []error {
	var errs []error
	conn := c.Connection

	if conn.ConnectTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    "connection.connect_timeout",
			Message: fmt.Sprintf("must be positive; got %v", conn.ConnectTimeout),
		})
	}

	if conn.DisconnectWait <= 0 {
		errs = append(errs, ValidationError{
			Path:    "connection.disconnect_wait",
			Message: fmt.Sprintf("must be positive; got %v", conn.DisconnectWait),
		})
	}

	return errs
}

func (c *Config) validateStream() []error {
	var errs []error
	st := c.Stream

	if st.TargetFPS < MinTargetFPS || st.TargetFPS > MaxTargetFPS {
		errs = append(errs, ValidationError{
			Path:    "stream.target_fps",
			Message: fmt.Sprintf("must be between %d and %d; got %d", MinTargetFPS, MaxTargetFPS, st.TargetFPS),
		})
	}

	if st.InactivityThreshold < MinInactivityThreshold || st.InactivityThreshold > MaxInactivityThreshold {
		errs = append(errs, ValidationError{
			Path:    "stream.inactivity_threshold",
			Message: fmt.Sprintf("must be between %v and %v; got %v", MinInactivityThreshold, MaxInactivityThreshold, st.InactivityThreshold),
		})
	}

	if st.ExportTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    "stream.export_timeout",
			Message: fmt.Sprintf("must be positive; got %v", st.ExportTimeout),
		})
	}

	if st.IdleBackoff <= 0 {
		errs = append(errs, ValidationError{
			Path:    "stream.idle_backoff",
			Message: fmt.Sprintf("must be positive; got %v", st.IdleBackoff),
		})
	}

	if st.ExportFileName == "" || filepath.Base(st.ExportFileName) != st.ExportFileName {
		errs = append(errs, ValidationError{
			Path:    "stream.export_file_name",
			Message: fmt.Sprintf("invalid file name %q", st.ExportFileName),
			Hint:    "must be a bare file name without directories",
		})
	}

	if st.MaxPayloadBytes <= 0 || st.MaxPayloadBytes > 1<<32-1 {
		errs = append(errs, ValidationError{
			Path:    "stream.max_payload_bytes",
			Message: fmt.Sprintf("must be between 1 and %d; got %d", int64(1<<32-1), st.MaxPayloadBytes),
			Hint:    "frames carry a 4-byte length prefix",
		})
	}

	if st.ScratchDir != "" {
		if err := validateScratchDir(st.ScratchDir); err != nil {
			errs = append(errs, ValidationError{
				Path:    "stream.scratch_dir",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func (c *Config) validateGateway() []error {
	var errs []error
	gw := c.Gateway

	if !gw.Enabled {
		return nil
	}

	if err := validateListenAddr(gw.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Path:    "gateway.listen_addr",
			Message: err.Error(),
			Hint:    "expected host:port or :port",
		})
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	log := c.Logging

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[log.Level] {
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", log.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[log.Format] {
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", log.Format),
			Hint:    "allowed values: json, console",
		})
	}

	if log.OutputFile != "" {
		dir := filepath.Dir(log.OutputFile)
		if dir != "" && dir != "." {
			if err := validateDirWritable(dir); err != nil {
				errs = append(errs, ValidationError{
					Path:    "logging.output_file",
					Message: fmt.Sprintf("parent directory not writable: %v", err),
				})
			}
		}
	}

	return errs
}

func validateScratchDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist")
	}
	return validateDirWritable(path)
}

func validateDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access directory: %v", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory")
	}

	// Try to write a test file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte(""), 0644); err != nil {
		return fmt.Errorf("directory not writable: %v", err)
	}
	os.Remove(testFile)

	return nil
}

func validateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be a number between 0 and 65535; got %q", port)
	}

	return nil
}
