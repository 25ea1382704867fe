package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config.yaml"

// Load reads configuration with environment variables taking precedence over
// the YAML file, and env-default tags filling whatever is left. The file
// path comes from CONFIG_PATH; when CONFIG_PATH is unset and no
// ./config.yaml exists, the env-only path is taken silently, which is the
// normal mode for one-off CLI runs.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	fromEnv := path != ""
	if !fromEnv {
		path = defaultConfigPath
	}

	switch _, err := os.Stat(path); {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	case fromEnv || !errors.Is(err, fs.ErrNotExist):
		// An explicitly requested file must exist and be readable.
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
