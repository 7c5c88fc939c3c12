package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Infrastructure credentials (Postgres,
// Redis) come from the environment; this file carries the server address and
// the game timers.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   GameConfig   `yaml:"game"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type GameConfig struct {
	CountdownSeconds int `yaml:"countdown_seconds"` // start countdown length
	SignalWindowMs   int `yaml:"signal_window_ms"`  // jackwhot call window
	IdleTimeoutMin   int `yaml:"idle_timeout_min"`  // room reap threshold
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	WinPoints        int `yaml:"win_points"` // points per winner per hand
}

func (c *GameConfig) SignalWindow() time.Duration {
	return time.Duration(c.SignalWindowMs) * time.Millisecond
}

func (c *GameConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMin) * time.Minute
}

func (c *GameConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// Load reads the yaml file at path, filling defaults for anything omitted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Game.CountdownSeconds == 0 {
		c.Game.CountdownSeconds = 5
	}
	if c.Game.SignalWindowMs == 0 {
		c.Game.SignalWindowMs = 3000
	}
	if c.Game.IdleTimeoutMin == 0 {
		c.Game.IdleTimeoutMin = 10
	}
	if c.Game.SweepIntervalSec == 0 {
		c.Game.SweepIntervalSec = 60
	}
	if c.Game.WinPoints == 0 {
		c.Game.WinPoints = 10
	}
}
