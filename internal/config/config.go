package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vvka-141/classload/pkg/classload"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ProjectConfig is the content of classload.yaml. Every field is optional;
// command-line flags take precedence over the file.
type ProjectConfig struct {
	// Connection is used when the connection argument is "-" and no
	// connection environment variable is set.
	Connection  string `yaml:"connection"`
	Timeout     string `yaml:"timeout"`
	BatchSize   int    `yaml:"batch_size"`
	SplitCommit bool   `yaml:"split_commit"`
}

func Load(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, classload.ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (c *ProjectConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q in %s: %w", c.Timeout, classload.ConfigFileName, err)
	}
	return d, nil
}
