package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/astrachat/starwallet/config"
)

// cliConfig is the ~/.starsctl/config.yaml shape.
type cliConfig struct {
	BackendURL   string `yaml:"backend_url"`
	SessionToken string `yaml:"session_token"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		BackendURL:   config.GetEnv("STARWALLET_BACKEND_URL", "http://localhost:8090"),
		SessionToken: config.GetEnv("STARWALLET_SESSION_TOKEN", ""),
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".starsctl", "config.yaml"), nil
}

func loadConfig(path string) (cliConfig, error) {
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return defaultConfig(), nil
		}
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return cliConfig{}, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}
