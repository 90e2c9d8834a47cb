package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable that points at the YAML config file.
const PathEnv = "CONFIG_PATH"

// DefaultPaths are probed in order when PathEnv is unset.
var DefaultPaths = []string{"./config.yaml", "./config/pipeline.yaml"}

// Load resolves the config file and reads it. Environment variables override
// YAML values, which override env-default tags. With PathEnv unset and no
// default file present, configuration comes from the environment alone.
func Load() (*Config, error) {
	if path := os.Getenv(PathEnv); path != "" {
		return LoadFile(path)
	}
	for _, path := range DefaultPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return LoadFile("")
}

// LoadFile reads path, or only the environment when path is empty. A named
// file that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
