package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PAPERS_CONFIG_PATH: config file location (default: ~/.config/papers.toml)
//   - PAPERS_HOME: base directory for papers data (default: ~/.local/share/papers)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("PAPERS_CONFIG_PATH", ".config", "papers.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("PAPERS_HOME", ".local", "share", "papers")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the env var when set, else the path under the home directory.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
