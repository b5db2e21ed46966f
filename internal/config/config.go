// Package config loads the peer-connection configuration a
// remote.Session is built from, YAML-tagged the way the teacher's
// top-level configuration structs are.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PeerConfig is the on-disk configuration for one remote analyzer peer
// (spec.md §6, "Configuration surface").
type PeerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
	AuthTimeoutMS    int `yaml:"auth_timeout_ms"`
	BodyTimeoutMS    int `yaml:"body_timeout_ms"`
	PDUChunkBytes    int `yaml:"pdu_chunk_bytes"`
}

// Load reads and parses filename, then validates the required fields
// (spec.md §7, "Configuration errors ... fail construction").
func Load(filename string) (*PeerConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	var cfg PeerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required peer fields per spec.md §6's
// configuration surface table.
func (c *PeerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range [1, 65535]", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("config: user is required")
	}
	if c.Password == "" {
		return fmt.Errorf("config: password is required")
	}
	return nil
}
