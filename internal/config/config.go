// Package config loads controller settings from the environment and
// diamond presets from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region env-config

// Config holds process settings read from STORYFORGE_* variables.
type Config struct {
	DBPath          string        `env:"STORYFORGE_DB_PATH" envDefault:"storyforge.db"`
	CodecAddr       string        `env:"STORYFORGE_CODEC_ADDR" envDefault:"localhost:50051"`
	Workers         int           `env:"STORYFORGE_WORKERS" envDefault:"2"`
	Mode            string        `env:"STORYFORGE_MODE" envDefault:"draft"`
	RPCTimeout      time.Duration `env:"STORYFORGE_RPC_TIMEOUT" envDefault:"90s"`
	DiamondFile     string        `env:"STORYFORGE_DIAMOND_FILE"`
	Seed            int64         `env:"STORYFORGE_SEED"` // 0 picks a time-based seed per run
	HeuristicCritic bool          `env:"STORYFORGE_HEURISTIC_CRITIC"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("STORYFORGE_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("STORYFORGE_RPC_TIMEOUT must be positive, got %s", c.RPCTimeout)
	}
	if _, err := story.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("STORYFORGE_MODE: %w", err)
	}
	return nil
}

// RunMode returns the parsed generation mode.
func (c Config) RunMode() story.Mode {
	m, _ := story.ParseMode(c.Mode)
	return m
}

// Diamond returns the preset from DiamondFile, or the default shape when unset.
func (c Config) Diamond() (story.DiamondConfig, error) {
	if c.DiamondFile == "" {
		return story.DefaultDiamondConfig(), nil
	}
	return LoadDiamondFile(c.DiamondFile)
}

// #endregion env-config

// #region diamond-file

// DiamondFile is the versioned YAML preset layout. Omitted fields keep
// their defaults.
type DiamondFile struct {
	Version int                 `yaml:"version"`
	Name    string              `yaml:"name"`
	Diamond story.DiamondConfig `yaml:"diamond"`
}

// LoadDiamondFile reads and validates a diamond preset.
func LoadDiamondFile(path string) (story.DiamondConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return story.DiamondConfig{}, err
	}
	return ParseDiamond(b)
}

// ParseDiamond decodes a preset document over the default config.
func ParseDiamond(b []byte) (story.DiamondConfig, error) {
	f := DiamondFile{Diamond: story.DefaultDiamondConfig()}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return story.DiamondConfig{}, fmt.Errorf("parse diamond file: %w", err)
	}
	if f.Version != 1 {
		return story.DiamondConfig{}, fmt.Errorf("unsupported diamond file version: %d", f.Version)
	}
	if err := f.Diamond.Validate(); err != nil {
		return story.DiamondConfig{}, err
	}
	return f.Diamond, nil
}

// #endregion diamond-file
