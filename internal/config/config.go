// Package config loads the YAML configuration file for the knocki CLI.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI settings that can live in a file instead of on
// the command line.
type Config struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Staging  bool   `yaml:"staging"`
}

// Load reads a YAML config file and expands ${VAR} environment
// variables, so credentials can be referenced rather than stored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the config carries complete credentials.
func (c *Config) Validate() error {
	if c.Email == "" {
		return errors.New("email is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}
