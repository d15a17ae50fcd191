// Package config handles reading tapestry.yaml and the .env file.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for tapestry.yaml.
type Config struct {
	Vendor      string  `yaml:"vendor"`       // dryrun | openai | anthropic
	Model       string  `yaml:"model"`        // vendor default when empty
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	DBPath      string  `yaml:"db_path"`      // empty means in-memory
	Manual      bool    `yaml:"manual"`       // disable phase auto-advance
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{Vendor: "dryrun"}
}

// Load reads the config file at path, after loading .env so vendor API keys
// are available. A missing file yields the defaults; a malformed one is an
// error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}
