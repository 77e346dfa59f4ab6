package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type AgentConfig struct {
	BaseURL        string `toml:"base_url"`
	StreamPath     string `toml:"stream_path"`
	SentinelLength int    `toml:"sentinel_length"`
	Sentinel       string `toml:"sentinel,omitempty"`
	RequestTimeout string `toml:"request_timeout,omitempty"`
	ConnectTimeout string `toml:"connect_timeout,omitempty"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

type UserConfig struct {
	Agent   AgentConfig   `toml:"agent"`
	History HistoryConfig `toml:"history"`
}

type Config struct {
	DataDirectory  string
	AgentURL       string
	StreamPath     string
	SentinelLength int
	Sentinel       string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	HistoryEnabled bool

	Keybindings *KeyBindingsConfig
}

var DebugLog *zerolog.Logger

// Keys returns the configured keybindings, or the defaults when none were loaded.
func (c *Config) Keys() *KeyBindingsConfig {
	if c.Keybindings == nil {
		return DefaultKeybindings()
	}
	return c.Keybindings
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if agentURL := os.Getenv(EnvAgentURL); agentURL != "" {
		c.AgentURL = agentURL
	}
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func (c *Config) applyUserConfig(userCfg *UserConfig) error {
	c.AgentURL = userCfg.Agent.BaseURL
	c.StreamPath = userCfg.Agent.StreamPath
	c.SentinelLength = userCfg.Agent.SentinelLength
	c.Sentinel = userCfg.Agent.Sentinel
	c.HistoryEnabled = userCfg.History.Enabled

	requestTimeout, err := parseDuration(userCfg.Agent.RequestTimeout)
	if err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	c.RequestTimeout = requestTimeout

	connectTimeout, err := parseDuration(userCfg.Agent.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	c.ConnectTimeout = connectTimeout

	if c.StreamPath == "" {
		c.StreamPath = DefaultStreamPath
	}
	if c.SentinelLength < 0 {
		return fmt.Errorf("sentinel_length must not be negative, got %d", c.SentinelLength)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func CheckDebug() bool {
	debug := os.Getenv(EnvDebug)
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log contains questions and replies
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	logger := zerolog.New(f).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Str("component", "helpdesk").
		Logger()
	DebugLog = &logger
	DebugLog.Info().Str("path", logPath).Msgf("=== Debug logging started (%s=%s) ===", EnvDebug, os.Getenv(EnvDebug))
}

// LoadDotEnv loads a .env file from the working directory. A missing file is not an error.
func LoadDotEnv() error {
	if !FileExists(".env") {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory:  GetDefaultDataDir(),
		AgentURL:       DefaultAgentURL,
		StreamPath:     DefaultStreamPath,
		SentinelLength: DefaultSentinelLength,
		ConnectTimeout: DefaultConnectTimeout,
		HistoryEnabled: true,
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	if systemCfg.DataDirectory != "" {
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	// The data directory may come from the environment, so resolve it before the user config
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := cfg.applyUserConfig(userCfg); err != nil {
		return nil, fmt.Errorf("failed to apply user config: %w", err)
	}

	cfg.applyEnvOverrides()

	keybindings, err := LoadKeybindings(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load keybindings: %w", err)
	}
	if ok, warning := keybindings.Validate(); !ok {
		return nil, fmt.Errorf("invalid keybindings: %s", warning)
	}
	cfg.Keybindings = keybindings

	return cfg, nil
}
