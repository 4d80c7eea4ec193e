package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	domain "command-centre/domain/config"
)

//go:embed default.yml
var defaultConfig []byte

// Default returns the built-in configuration.
func Default() (*domain.Config, error) {
	return parse(defaultConfig)
}

// Load parses the YAML configuration file at path. When path does not exist
// the built-in configuration is used. The result is validated.
func Load(path string) (*domain.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		slog.Info("config.default", "missing", path)
		b = defaultConfig
	}
	c, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	slog.Info(fmt.Sprintf("Loaded config: %s", path), "layouts", len(c.Layouts))
	return c, nil
}

func parse(b []byte) (*domain.Config, error) {
	var c domain.Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
