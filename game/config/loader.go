package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads and validates configuration from a YAML file.
// Environment overrides are applied before validation.
func LoadConfig(path string) (*RouletteConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Configuration file not found: %s", path),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error reading configuration file: %v", err),
		}
	}

	return Parse(data)
}

// LoadOrDefault is LoadConfig, except a missing file yields the defaults.
func LoadOrDefault(path string) (*RouletteConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c := Default()
		ApplyEnv(c)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	}
	return LoadConfig(path)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*RouletteConfig, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error parsing YAML file: %v", err),
		}
	}

	// YAML reads 1.0 as a float.
	version := raw["version"]
	if version != CurrentVersion && fmt.Sprintf("%v", version) != "1" && fmt.Sprintf("%v", version) != CurrentVersion {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid version: %v. Expected %s", version, CurrentVersion),
		}
	}

	raw["version"] = CurrentVersion

	yamlData, err := yaml.Marshal(raw)
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error converting config data: %v", err),
		}
	}

	var config RouletteConfig
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid configuration: %v", err),
		}
	}

	ApplyEnv(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyEnv overrides config fields from the environment.
func ApplyEnv(c *RouletteConfig) {
	if v := os.Getenv("ROULETTE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Source.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Source.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ROULETTE_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("ROULETTE_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("ROULETTE_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("ROULETTE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// UnmarshalYAML accepts either a bare URL or a {name, url} mapping.
func (p *PlaylistSource) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.URL = strings.TrimSpace(value.Value)
		p.Name = p.URL
		return nil
	case yaml.MappingNode:
		type plain PlaylistSource
		var v plain
		if err := value.Decode(&v); err != nil {
			return err
		}
		if v.URL == "" && len(value.Content) == 2 {
			// Simple form: {name: url}
			v.Name = value.Content[0].Value
			v.URL = value.Content[1].Value
		}
		if v.Name == "" {
			v.Name = v.URL
		}
		*p = PlaylistSource(v)
		return nil
	default:
		return fmt.Errorf("invalid playlist entry at line %d: expected string or mapping", value.Line)
	}
}
