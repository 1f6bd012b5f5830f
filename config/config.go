package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration (YAML).
type Config struct {
	DeviceName              string `yaml:"device_name"`               // defaults to hostname when empty
	MulticastAddress        string `yaml:"multicast_address"`         // discovery group address
	MulticastPort           int    `yaml:"multicast_port"`            // discovery group port
	AnnounceIntervalSeconds int    `yaml:"announce_interval_seconds"` // presence broadcast cadence
	PeerTTLSeconds          int    `yaml:"peer_ttl_seconds"`          // peer considered gone after this silence
	BaseTCPPort             int    `yaml:"base_tcp_port"`             // transport listener probes upward from here
	PollIntervalMillis      int    `yaml:"poll_interval_millis"`      // clipboard poll cadence
	HTTPPort                int    `yaml:"http_port"`                 // status API port; 0 disables the API
	APIPrefix               string `yaml:"api_prefix"`
	NotificationsEnabled    bool   `yaml:"notifications_enabled"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		MulticastAddress:        "239.255.255.250",
		MulticastPort:           8765,
		AnnounceIntervalSeconds: 5,
		PeerTTLSeconds:          15,
		BaseTCPPort:             8766,
		PollIntervalMillis:      500,
		HTTPPort:                8890,
		APIPrefix:               "/api/v1",
		NotificationsEnabled:    true,
	}
}

// Load reads config from path. If path is empty, env LANCLIP_CONFIG is used; else "config.yaml".
// A missing default config file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("LANCLIP_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return &c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.MulticastPort <= 0 || c.MulticastPort > 65535 {
		return fmt.Errorf("config: multicast_port %d out of range", c.MulticastPort)
	}
	if c.BaseTCPPort <= 0 || c.BaseTCPPort > 65535 {
		return fmt.Errorf("config: base_tcp_port %d out of range", c.BaseTCPPort)
	}
	if c.AnnounceIntervalSeconds <= 0 {
		return fmt.Errorf("config: announce_interval_seconds must be positive")
	}
	if c.PeerTTLSeconds <= 0 {
		return fmt.Errorf("config: peer_ttl_seconds must be positive")
	}
	if c.PollIntervalMillis <= 0 {
		return fmt.Errorf("config: poll_interval_millis must be positive")
	}
	return nil
}

// AnnounceInterval returns the presence broadcast cadence as a Duration.
func (c *Config) AnnounceInterval() time.Duration {
	return time.Duration(c.AnnounceIntervalSeconds) * time.Second
}

// PeerTTL returns the peer staleness threshold as a Duration.
func (c *Config) PeerTTL() time.Duration {
	return time.Duration(c.PeerTTLSeconds) * time.Second
}

// PollInterval returns the clipboard poll cadence as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}
